package options

import (
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"harnss7/cmd/s7client/config"
	"harnss7/pkg/device"
	"harnss7/pkg/gateway"
	"harnss7/pkg/generic"
	baseoptions "harnss7/pkg/generic/options"
	"harnss7/pkg/storage"
	"harnss7/pkg/utils/uuidutil"
	"k8s.io/klog/v2"
)

type MqttOptions struct {
	Broker         string        `json:"broker"`
	ClientID       string        `json:"clientId"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	ConnectTimeout time.Duration `json:"connectTimeout"`
}

// Options configures the serve command.
type Options struct {
	Port        string        `json:"port"`
	Wait        time.Duration `json:"graceful-timeout"`
	DataDir     string        `json:"dataDir"`
	GatewayName string        `json:"gatewayName"`
	CertFile    string        `json:"certFile"`
	KeyFile     string        `json:"keyFile"`
	Mqtt        MqttOptions   `json:"mqtt"`
	baseoptions.BaseOptions
}

const (
	_defaultPort        = "32200"
	_defaultWait        = 15 * time.Second
	_defaultMqttTimeout = 5 * time.Second
	_gatewayName        = "harnss7"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:        _defaultPort,
		Wait:        _defaultWait,
		DataDir:     storage.DefaultStorePath(),
		GatewayName: _gatewayName,
		Mqtt:        MqttOptions{ConnectTimeout: _defaultMqttTimeout},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.DataDir, "data-dir", o.DataDir, "Directory keeping the device definitions and the gateway identity")
	fs.StringVar(&o.GatewayName, "gateway-name", o.GatewayName, "Name given to a newly generated gateway identity")
	fs.StringVar(&o.CertFile, "tls-cert-file", o.CertFile, "File containing the x509 certificate for HTTPS")
	fs.StringVar(&o.KeyFile, "tls-private-key-file", o.KeyFile, "File containing the x509 private key matching --tls-cert-file")
	fs.StringVar(&o.Mqtt.Broker, "mqtt-broker", o.Mqtt.Broker, "MQTT broker collected values are published to, e.g. tcp://127.0.0.1:1883. Values are not published when empty")
	fs.StringVar(&o.Mqtt.ClientID, "mqtt-client-id", o.Mqtt.ClientID, "MQTT client id, generated when empty")
	fs.StringVar(&o.Mqtt.Username, "mqtt-username", o.Mqtt.Username, "MQTT username")
	fs.StringVar(&o.Mqtt.Password, "mqtt-password", o.Mqtt.Password, "MQTT password")
	fs.DurationVar(&o.Mqtt.ConnectTimeout, "mqtt-connect-timeout", o.Mqtt.ConnectTimeout, "Timeout of the first MQTT connect")
}

func (o *Options) newMqttClient() (mqtt.Client, error) {
	if len(o.Mqtt.Broker) == 0 {
		klog.V(1).InfoS("No MQTT broker configured, collected values are not published")
		return nil, nil
	}
	clientID := o.Mqtt.ClientID
	if len(clientID) == 0 {
		clientID = o.GatewayName + "-" + uuidutil.ShortUUID()
	}
	mo := mqtt.NewClientOptions().
		AddBroker(o.Mqtt.Broker).
		SetClientID(clientID).
		SetUsername(o.Mqtt.Username).
		SetPassword(o.Mqtt.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(o.Mqtt.ConnectTimeout)
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		klog.V(1).InfoS("Lost MQTT connection", "broker", o.Mqtt.Broker, "err", err)
	})

	client := mqtt.NewClient(mo)
	token := client.Connect()
	if !token.WaitTimeout(o.Mqtt.ConnectTimeout) {
		klog.V(1).InfoS("MQTT broker not reachable yet, retrying in background", "broker", o.Mqtt.Broker)
		return client, nil
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect mqtt broker %s", o.Mqtt.Broker)
	}
	return client, nil
}

func (o *Options) Config(stopCh <-chan struct{}) (*config.Config, error) {
	if err := os.MkdirAll(o.DataDir, 0711); err != nil {
		return nil, errors.Wrap(err, "data dir")
	}

	gatewayMgr := gateway.NewGatewayManager(stopCh, gateway.WithName(o.GatewayName))
	if err := gatewayMgr.Init(o.DataDir); err != nil {
		return nil, err
	}
	gatewayMeta, _ := gatewayMgr.GetGatewayMeta()

	store, err := generic.NewStore(o.DataDir, storage.StoreGroupToString[storage.StoreGroupDevice], storage.Devices, generic.DeviceTypeObjectMap)
	if err != nil {
		return nil, err
	}

	mqttClient, err := o.newMqttClient()
	if err != nil {
		return nil, err
	}

	deviceMgr := device.NewManager(store, mqttClient, gatewayMeta, stopCh)
	deviceMgr.Init()

	return &config.Config{
		DeviceMgr:  deviceMgr,
		GatewayMgr: gatewayMgr,
		CertFile:   o.CertFile,
		KeyFile:    o.KeyFile,
	}, nil
}
