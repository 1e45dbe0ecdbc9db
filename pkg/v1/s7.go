package v1

type S7Variable struct {
	DataType     string      `json:"dataType" binding:"required,oneof=bool int16 uint16 int32 int64 float32 float64"`
	Name         string      `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	Address      string      `json:"address" binding:"required"` // DB1.DBW0, M10.1, T3 ...
	Rate         float64     `json:"rate,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
	AccessMode   string      `json:"accessMode" binding:"omitempty,oneof=r rw"`
}

type S7Device struct {
	DeviceMeta
	CollectorCycle uint          `json:"collectorCycle" binding:"required"` // seconds
	Address        *S7Address    `json:"address" binding:"required"`
	Variables      []*S7Variable `json:"variables" binding:"required,dive"`
}

type S7Address struct {
	Location string           `json:"location" binding:"required"` // host or ip of the CPU
	Option   *S7AddressOption `json:"option" binding:"required"`
}

type S7AddressOption struct {
	Port           uint   `json:"port,omitempty"`
	Rack           uint8  `json:"rack,omitempty" binding:"max=7"`
	Slot           uint8  `json:"slot,omitempty" binding:"max=31"`
	ConnectionType string `json:"connectionType,omitempty" binding:"omitempty,oneof=pg op basic"`
	LocalTSAP      uint16 `json:"localTSAP,omitempty"`
	RemoteTSAP     uint16 `json:"remoteTSAP,omitempty"`
	PDURequest     int    `json:"pduRequest,omitempty" binding:"omitempty,min=240,max=960"`
	Timeout        uint   `json:"timeout,omitempty"` // receive timeout in ms
}

// PlcOperation is a run state change of the CPU itself.
type PlcOperation struct {
	Operation string `json:"operation" binding:"required,oneof=stop hotStart coldStart"`
}
