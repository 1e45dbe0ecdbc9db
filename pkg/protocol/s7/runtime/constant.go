package runtime

import "errors"

var ErrBadConn = errors.New("s7 bad connection")
var ErrManyRetry = errors.New("s7 request retried more than three times")
var ErrDeviceType = errors.New("unsupported s7 device model")
var ErrVariableAddress = errors.New("invalid s7 variable address")
var ErrMessengerClosed = errors.New("s7 messenger pool closed")

// S7StoreArea is the area code carried in the S7 any-pointer.
type S7StoreArea uint8

const (
	I  S7StoreArea = 0x81 // process inputs
	Q  S7StoreArea = 0x82 // process outputs
	M  S7StoreArea = 0x83 // merkers
	DB S7StoreArea = 0x84 // data blocks
	C  S7StoreArea = 0x1c // counters
	T  S7StoreArea = 0x1d // timers
)

var StoreAddressToString = map[S7StoreArea]string{
	I:  "I",
	Q:  "Q",
	M:  "M",
	DB: "DB",
	C:  "C",
	T:  "T",
}

var StringToStoreAddress = map[string]S7StoreArea{
	"I":  I,
	"E":  I,
	"Q":  Q,
	"A":  Q,
	"M":  M,
	"DB": DB,
	"C":  C,
	"Z":  C,
	"T":  T,
}

// WordLen is the transport size of a request item.
type WordLen uint8

const (
	WLBit     WordLen = 0x01
	WLByte    WordLen = 0x02
	WLChar    WordLen = 0x03
	WLWord    WordLen = 0x04
	WLInt     WordLen = 0x05
	WLDWord   WordLen = 0x06
	WLDInt    WordLen = 0x07
	WLReal    WordLen = 0x08
	WLCounter WordLen = 0x1c
	WLTimer   WordLen = 0x1d
)

// Size returns the byte size of one element, 0 for an unknown word length.
func (wl WordLen) Size() int {
	switch wl {
	case WLBit, WLByte, WLChar:
		return 1
	case WLWord, WLInt, WLCounter, WLTimer:
		return 2
	case WLDWord, WLDInt, WLReal:
		return 4
	default:
		return 0
	}
}

// Transport sizes used in the data part of read/write telegrams.
const (
	TSResBit   uint8 = 0x03
	TSResByte  uint8 = 0x04
	TSResInt   uint8 = 0x05
	TSResReal  uint8 = 0x07
	TSResOctet uint8 = 0x09
)

type ParamNumber int

const (
	LocalPort    ParamNumber = 1
	RemotePort   ParamNumber = 2
	PingTimeout  ParamNumber = 3
	SendTimeout  ParamNumber = 4
	RecvTimeout  ParamNumber = 5
	WorkInterval ParamNumber = 6
	SrcRef       ParamNumber = 7
	DstRef       ParamNumber = 8
	SrcTSap      ParamNumber = 9
	PDURequest   ParamNumber = 10
)

var ParamNumberToString = map[ParamNumber]string{
	LocalPort:    "LocalPort",
	RemotePort:   "RemotePort",
	PingTimeout:  "PingTimeout",
	SendTimeout:  "SendTimeout",
	RecvTimeout:  "RecvTimeout",
	WorkInterval: "WorkInterval",
	SrcRef:       "SrcRef",
	DstRef:       "DstRef",
	SrcTSap:      "SrcTSap",
	PDURequest:   "PDURequest",
}

// ConnectionType is the high byte of the remote TSAP.
type ConnectionType uint16

const (
	PG      ConnectionType = 0x01
	OP      ConnectionType = 0x02
	S7Basic ConnectionType = 0x03
)

var ConnectionTypeToString = map[ConnectionType]string{
	PG:      "pg",
	OP:      "op",
	S7Basic: "basic",
}

var StringToConnectionType = map[string]ConnectionType{
	"pg":    PG,
	"op":    OP,
	"basic": S7Basic,
}

type CpuStatus uint8

const (
	CpuStatusUnknown CpuStatus = 0x00
	CpuStatusStop    CpuStatus = 0x04
	CpuStatusRun     CpuStatus = 0x08
)

var CpuStatusToString = map[CpuStatus]string{
	CpuStatusUnknown: "unknown",
	CpuStatusStop:    "stop",
	CpuStatusRun:     "run",
}

const (
	DefaultRemotePort  = 102
	DefaultLocalTSAP   = 0x0100
	DefaultSrcRef      = 0x0100
	DefaultPDURequest  = 480
	MinPDURequest      = 240
	MaxPDURequest      = 960
	MaxVars            = 20
	DefaultPingTimeout = 750
	DefaultSendTimeout = 10
	DefaultRecvTimeout = 3000
)

// RemoteTSAP is the destination TSAP addressing the CPU at rack/slot.
func RemoteTSAP(ct ConnectionType, rack, slot int) uint16 {
	return uint16(ct)<<8 | uint16(rack*0x20+slot)
}
