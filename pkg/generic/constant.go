package generic

import (
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	v1 "harnss7/pkg/v1"
)

var DeviceTypeMap = v1.DeviceTypeMap

var DeviceTypeObjectMap = map[string]runtime.Device{
	v1.DeviceTypeS7: &s7runtime.S7Device{},
}

type NewBroker func(object runtime.Device) (runtime.Broker, chan *runtime.ParseVariableResult, error)

var DeviceTypeBrokerMap = map[string]NewBroker{
	v1.DeviceTypeS7: s7.NewCollector,
}
