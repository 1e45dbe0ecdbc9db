package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"harnss7/cmd/s7client/options"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime/constant"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type variableValue struct {
	Address string      `json:"address"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func newClientCommand(use, short, long string, acceptArgs bool, run func(ctx context.Context, out io.Writer, o *options.ClientOptions, client *s7.Client, args []string) error) *cobra.Command {
	o := options.NewDefaultClientOptions()
	return newCommand(use, short, long, o, func() interface{} { return options.NewDefaultClientOptions() }, acceptArgs,
		func(cmd *cobra.Command, args []string) error {
			if errs := options.ValidateClient(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := o.Connect(ctx)
			if err != nil {
				return err
			}
			defer client.Destroy()

			ctx, cancel := context.WithTimeout(ctx, o.Timeout)
			defer cancel()
			return run(ctx, cmd.OutOrStdout(), o, client, args)
		})
}

func newReadCmd() *cobra.Command {
	return newClientCommand("read [flags] ADDRESS...", "Read variables",
		`Read one or more variables of the same data type, e.g.

  s7client read -a 192.168.0.1 -t float32 DB1.DBD0 DB1.DBD4`,
		true,
		func(ctx context.Context, out io.Writer, o *options.ClientOptions, client *s7.Client, args []string) error {
			if len(args) == 0 {
				return errors.New("no variable address given")
			}
			variables, items, err := newItems(o.DataType, args, nil)
			if err != nil {
				return err
			}
			values := make([]variableValue, 0, len(args))
			for _, group := range s7.ReadGroups(items, client.PDULength()) {
				if err = client.ReadMultiVars(ctx, group); err != nil {
					return err
				}
			}
			for i, item := range items {
				vv := variableValue{Address: args[i]}
				if item.Err != nil {
					vv.Error = item.Err.Error()
				} else if vv.Value, err = variables[i].variable.Decode(item.Data, variables[i].bit); err != nil {
					vv.Error = err.Error()
				}
				values = append(values, vv)
			}
			return printResult(out, o.Output, values)
		})
}

func newWriteCmd() *cobra.Command {
	return newClientCommand("write [flags] ADDRESS=VALUE...", "Write variables",
		`Write one or more variables of the same data type, e.g.

  s7client write -a 192.168.0.1 -t int16 DB1.DBW0=12 DB1.DBW2=-3`,
		true,
		func(ctx context.Context, out io.Writer, o *options.ClientOptions, client *s7.Client, args []string) error {
			if len(args) == 0 {
				return errors.New("no assignment given")
			}
			addresses := make([]string, 0, len(args))
			values := make([]string, 0, len(args))
			for _, arg := range args {
				address, value, ok := strings.Cut(arg, "=")
				if !ok {
					return errors.Errorf("%q is not ADDRESS=VALUE", arg)
				}
				addresses = append(addresses, address)
				values = append(values, value)
			}
			_, items, err := newItems(o.DataType, addresses, values)
			if err != nil {
				return err
			}
			for _, group := range s7.WriteGroups(items, client.PDULength()) {
				if err = client.WriteMultiVars(ctx, group); err != nil {
					return err
				}
			}
			results := make([]variableValue, 0, len(items))
			for i, item := range items {
				vv := variableValue{Address: addresses[i], Value: values[i]}
				if item.Err != nil {
					vv.Error = item.Err.Error()
				}
				results = append(results, vv)
			}
			return printResult(out, o.Output, results)
		})
}

type statusOutput struct {
	Status string  `json:"status"`
	PDU    int     `json:"pdu"`
	SZL    *s7.SZL `json:"szl,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return newClientCommand("status [flags] [SZL-ID [SZL-INDEX]]", "Show the CPU state",
		`Show the run state of the CPU and the negotiated PDU length. With an SZL
id the partial list is read as well, e.g.

  s7client status -a 192.168.0.1 0x0011`,
		true,
		func(ctx context.Context, out io.Writer, o *options.ClientOptions, client *s7.Client, args []string) error {
			status, err := client.PlcStatus(ctx)
			if err != nil {
				return err
			}
			so := statusOutput{Status: s7runtime.CpuStatusToString[status], PDU: client.PDULength()}
			if len(args) > 0 {
				id, index, err := parseSZL(args)
				if err != nil {
					return err
				}
				if so.SZL, err = client.ReadSZL(ctx, id, index); err != nil {
					return err
				}
			}
			return printResult(out, o.Output, so)
		})
}

func newControlCmd() *cobra.Command {
	return newClientCommand("control [flags] stop|hotStart|coldStart", "Stop or start the CPU", "Stop, hot start or cold start the CPU.",
		true,
		func(ctx context.Context, out io.Writer, o *options.ClientOptions, client *s7.Client, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one operation expected: stop, hotStart or coldStart")
			}
			var err error
			switch args[0] {
			case s7.PlcOperationStop:
				err = client.PlcStop(ctx)
			case s7.PlcOperationHotStart:
				err = client.PlcHotStart(ctx)
			case s7.PlcOperationColdStart:
				err = client.PlcColdStart(ctx)
			default:
				return errors.Errorf("unknown operation %q", args[0])
			}
			if err != nil {
				return err
			}
			klog.V(2).InfoS("Controlled plc", "address", o.Address, "operation", args[0])
			status, err := client.PlcStatus(ctx)
			if err != nil {
				return err
			}
			return printResult(out, o.Output, statusOutput{Status: s7runtime.CpuStatusToString[status], PDU: client.PDULength()})
		})
}

type itemVariable struct {
	variable *s7runtime.Variable
	bit      int
}

// newItems builds one item per address, a write item when values is set.
func newItems(dataType string, addresses []string, values []string) ([]itemVariable, []*s7runtime.DataItem, error) {
	dt := constant.StringToDataType[dataType]
	variables := make([]itemVariable, 0, len(addresses))
	items := make([]*s7runtime.DataItem, 0, len(addresses))
	var errs []error
	for i, address := range addresses {
		v := &s7runtime.Variable{Name: address, Address: address, DataType: dt}
		va, err := v.Parse()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		item := v.ReadItem(va)
		if values != nil {
			if item, err = v.WriteItem(va, values[i]); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		variables = append(variables, itemVariable{variable: v, bit: va.Bit})
		items = append(items, item)
	}
	return variables, items, utilserrors.NewAggregate(errs)
}

func parseSZL(args []string) (uint16, uint16, error) {
	id, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return 0, 0, errors.Wrap(err, "szl id")
	}
	var index uint64
	if len(args) > 1 {
		if index, err = strconv.ParseUint(args[1], 0, 16); err != nil {
			return 0, 0, errors.Wrap(err, "szl index")
		}
	}
	return uint16(id), uint16(index), nil
}

func printResult(out io.Writer, format string, v interface{}) error {
	var data []byte
	var err error
	if format == "json" {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, string(data))
	return err
}
