package v1

// DeviceType is a device as posted to the api, before it is turned into a
// runtime device by the manager of its type.
type DeviceType interface {
	GetDeviceType() string
	GetDeviceModel() string
}

type DeviceMeta struct {
	PublishMeta
	Name        string `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	DeviceCode  string `json:"deviceCode" binding:"required,min=1,max=32,excludesall=\u002F\u005C"`
	DeviceType  string `json:"deviceType" binding:"required,min=1,max=32,excludesall=\u002F\u005C"`
	DeviceModel string `json:"deviceModel" binding:"required,min=1,max=32,excludesall=\u002F\u005C"`
}

type PublishMeta struct {
	Topic string `json:"topic,omitempty" binding:"omitempty,max=256"`
}

func (d *DeviceMeta) GetDeviceType() string {
	return d.DeviceType
}

func (d *DeviceMeta) GetDeviceModel() string {
	return d.DeviceModel
}
