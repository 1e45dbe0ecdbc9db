package options

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	baseoptions "harnss7/pkg/generic/options"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

// ClientOptions addresses one CPU for the one-shot commands.
type ClientOptions struct {
	Address        string        `json:"address"`
	Port           int           `json:"port"`
	Rack           int           `json:"rack"`
	Slot           int           `json:"slot"`
	ConnectionType string        `json:"connectionType"`
	PDURequest     int           `json:"pduRequest"`
	Timeout        time.Duration `json:"timeout"`
	DataType       string        `json:"dataType"`
	Output         string        `json:"output"`
	baseoptions.BaseOptions
}

const (
	_defaultS7Port     = 102
	_defaultSlot       = 1
	_defaultPDURequest = 480
	_defaultTimeout    = 3 * time.Second
)

func NewDefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Port:           _defaultS7Port,
		Slot:           _defaultSlot,
		ConnectionType: s7runtime.ConnectionTypeToString[s7runtime.PG],
		PDURequest:     _defaultPDURequest,
		Timeout:        _defaultTimeout,
		DataType:       "int16",
		Output:         "yaml",
		BaseOptions:    baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *ClientOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Address, "address", "a", o.Address, "IP address or host name of the PLC")
	fs.IntVar(&o.Port, "s7-port", o.Port, "ISO-on-TCP port of the PLC")
	fs.IntVar(&o.Rack, "rack", o.Rack, "Rack of the CPU, 0..7")
	fs.IntVar(&o.Slot, "slot", o.Slot, "Slot of the CPU, 0..31")
	fs.StringVar(&o.ConnectionType, "connection-type", o.ConnectionType, "Connection resource: pg, op or basic")
	fs.IntVar(&o.PDURequest, "pdu", o.PDURequest, "PDU length requested when connecting")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of connecting and of every request")
	fs.StringVarP(&o.DataType, "type", "t", o.DataType, "Data type of the variables read or written: bool, int16, uint16, int32, int64, float32 or float64")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format: yaml or json")
}

// Connect opens a client configured by o.
func (o *ClientOptions) Connect(ctx context.Context) (*s7.Client, error) {
	client := s7.NewClient()
	if err := client.SetConnectionType(s7runtime.StringToConnectionType[o.ConnectionType]); err != nil {
		return nil, err
	}
	millis := int(o.Timeout / time.Millisecond)
	for number, value := range map[s7runtime.ParamNumber]int{
		s7runtime.RemotePort:  o.Port,
		s7runtime.PDURequest:  o.PDURequest,
		s7runtime.PingTimeout: millis,
		s7runtime.SendTimeout: millis,
		s7runtime.RecvTimeout: millis,
	} {
		if err := client.SetParam(number, value); err != nil {
			return nil, errors.Wrapf(err, "set %s", s7runtime.ParamNumberToString[number])
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	if err := client.ConnectTo(ctx, o.Address, o.Rack, o.Slot); err != nil {
		client.Destroy()
		return nil, errors.Wrapf(err, "connect %s", o.Address)
	}
	return client, nil
}
