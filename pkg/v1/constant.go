package v1

const DeviceTypeS7 = "s7"

var DeviceTypeMap = map[string]func() DeviceType{
	DeviceTypeS7: func() DeviceType { return &S7Device{} },
}
