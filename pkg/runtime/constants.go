package runtime

// ETagMaxInitialValue bounds the random initial version of a new object.
const ETagMaxInitialValue int64 = 3294967296

type CollectStatus int8

const (
	Collecting CollectStatus = iota
	CollectingError
	Error
	EmptyVariable
	Unconnected
	Stopped
)

var CollectStatusToString = map[CollectStatus]string{
	Collecting:      "collecting",
	CollectingError: "collectingError",
	Error:           "error",
	EmptyVariable:   "emptyVariable",
	Unconnected:     "unconnected",
	Stopped:         "stopped",
}

var StringToCollectStatus = map[string]CollectStatus{
	"collecting":      Collecting,
	"collectingError": CollectingError,
	"error":           Error,
	"emptyVariable":   EmptyVariable,
	"unconnected":     Unconnected,
	"stopped":         Stopped,
}

// DeviceStatusCh is a collect state change asked for through the api.
type DeviceStatusCh int8

const (
	Start DeviceStatusCh = iota
	Restart
	Stop
)

var DeviceStatusChToString = map[DeviceStatusCh]string{
	Start:   "start",
	Restart: "restart",
	Stop:    "stop",
}

var StringToDeviceStatusCh = map[string]DeviceStatusCh{
	"start":   Start,
	"restart": Restart,
	"stop":    Stop,
}
