package runtime

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"harnss7/pkg/runtime/constant"
)

var (
	ErrNotObject = fmt.Errorf("object does not implement the Object interfaces")
)

type RunObject interface {
	DeepCopyObject() RunObject
}

type ObjectMetaAccessor interface {
	GetObjectMeta() Object
}

// Collector polls a device and hands the decoded values to the channel
// returned with it.
type Collector interface {
	Collect(ctx context.Context)
	Destroy(ctx context.Context)
}

// Broker is a Collector that can also write variables back to the device.
type Broker interface {
	Collector
	DeliverAction(ctx context.Context, obj map[string]interface{}) error
}

type VariableValue interface {
	SetValue(value interface{})
	GetValue() interface{}
	GetVariableName() string
	SetVariableName(name string)
	GetVariableAccessMode() constant.AccessMode
}

type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetModTime() time.Time
	SetModTime(time.Time)
}

type Device interface {
	Object
	RunObject
	GetDeviceCode() string
	SetDeviceCode(string)
	GetDeviceType() string
	SetDeviceType(string)
	GetDeviceModel() string
	SetDeviceModel(string)
	GetCollectStatus() string
	SetCollectStatus(string)
	GetTopic() string
	SetTopic(string)
	GetVariable(name string) (VariableValue, bool)
	IndexDevice()
}

type ObjectMeta struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	Version string    `json:"eTag"`
	ModTime time.Time `json:"modTime"`
}

type PublishMeta struct {
	Topic string `json:"topic,omitempty"`
}

type DeviceMeta struct {
	PublishMeta
	ObjectMeta
	DeviceCode    string `json:"deviceCode"`
	DeviceType    string `json:"deviceType"`
	DeviceModel   string `json:"deviceModel"`
	CollectStatus string `json:"collectStatus"`
}

type CreateOptions struct {
	Query url.Values
}

type GetOptions struct {
	Version string
	Query   url.Values
}

type ListOptions struct {
	Filter map[string]interface{}
	Query  url.Values
}

type UpdateOptions struct {
	Version string
	Query   url.Values
}

type DeleteOptions struct {
	Version string
	Query   url.Values
}

func (d *DeviceMeta) GetDeviceCode() string          { return d.DeviceCode }
func (d *DeviceMeta) SetDeviceCode(s string)         { d.DeviceCode = s }
func (d *DeviceMeta) GetDeviceType() string          { return d.DeviceType }
func (d *DeviceMeta) SetDeviceType(s string)         { d.DeviceType = s }
func (d *DeviceMeta) GetDeviceModel() string         { return d.DeviceModel }
func (d *DeviceMeta) SetDeviceModel(model string)    { d.DeviceModel = model }
func (d *DeviceMeta) GetCollectStatus() string       { return d.CollectStatus }
func (d *DeviceMeta) SetCollectStatus(status string) { d.CollectStatus = status }
func (d *DeviceMeta) GetTopic() string               { return d.Topic }
func (d *DeviceMeta) SetTopic(topic string)          { d.Topic = topic }

func (d *DeviceMeta) GetVariable(string) (VariableValue, bool) {
	return nil, false
}

func (d *DeviceMeta) IndexDevice() {}

// DeepCopyObject copies the meta only, it is what a folded device looks like.
func (d *DeviceMeta) DeepCopyObject() RunObject {
	if d == nil {
		return nil
	}
	out := *d
	return &out
}

func (meta *ObjectMeta) GetName() string              { return meta.Name }
func (meta *ObjectMeta) SetName(name string)          { meta.Name = name }
func (meta *ObjectMeta) GetID() string                { return meta.ID }
func (meta *ObjectMeta) SetID(id string)              { meta.ID = id }
func (meta *ObjectMeta) GetVersion() string           { return meta.Version }
func (meta *ObjectMeta) SetVersion(version string)    { meta.Version = version }
func (meta *ObjectMeta) GetModTime() time.Time        { return meta.ModTime }
func (meta *ObjectMeta) SetModTime(modTime time.Time) { meta.ModTime = modTime }

func Accessor(obj interface{}) (Object, error) {
	switch t := obj.(type) {
	case Object:
		return t, nil
	case ObjectMetaAccessor:
		if m := t.GetObjectMeta(); m != nil {
			return m, nil
		}
		return nil, ErrNotObject
	default:
		return nil, ErrNotObject
	}
}

func AccessorDevice(obj interface{}) (Device, error) {
	switch t := obj.(type) {
	case Device:
		return t, nil
	default:
		return nil, ErrNotObject
	}
}
