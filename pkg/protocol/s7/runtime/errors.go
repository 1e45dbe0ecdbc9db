package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Result codes. The low word holds the TCP class, bits 16..19 the ISO class
// and the upper bits the client class, so a single code can carry one error
// of each class.
const (
	CodeOK uint32 = 0x00000000

	CodeTCPSocketCreation    uint32 = 0x00000001
	CodeTCPConnectionTimeout uint32 = 0x00000002
	CodeTCPConnectionFailed  uint32 = 0x00000003
	CodeTCPReceiveTimeout    uint32 = 0x00000004
	CodeTCPDataReceive       uint32 = 0x00000005
	CodeTCPSendTimeout       uint32 = 0x00000006
	CodeTCPDataSend          uint32 = 0x00000007
	CodeTCPConnectionReset   uint32 = 0x00000008
	CodeTCPNotConnected      uint32 = 0x00000009
	CodeTCPUnreachableHost   uint32 = 0x00002751

	CodeIsoConnect          uint32 = 0x00010000
	CodeIsoDisconnect       uint32 = 0x00020000
	CodeIsoInvalidPDU       uint32 = 0x00030000
	CodeIsoInvalidDataSize  uint32 = 0x00040000
	CodeIsoNullPointer      uint32 = 0x00050000
	CodeIsoShortPacket      uint32 = 0x00060000
	CodeIsoTooManyFragments uint32 = 0x00070000
	CodeIsoPduOverflow      uint32 = 0x00080000
	CodeIsoSendPacket       uint32 = 0x00090000
	CodeIsoRecvPacket       uint32 = 0x000a0000
	CodeIsoInvalidParams    uint32 = 0x000b0000

	CodeNegotiatingPDU            uint32 = 0x00100000
	CodeCliInvalidParams          uint32 = 0x00200000
	CodeCliJobPending             uint32 = 0x00300000
	CodeCliTooManyItems           uint32 = 0x00400000
	CodeCliInvalidWordLen         uint32 = 0x00500000
	CodeCliPartialDataWritten     uint32 = 0x00600000
	CodeCliSizeOverPDU            uint32 = 0x00700000
	CodeCliInvalidPlcAnswer       uint32 = 0x00800000
	CodeCliAddressOutOfRange      uint32 = 0x00900000
	CodeCliInvalidTransportSize   uint32 = 0x00a00000
	CodeCliWriteDataSizeMismatch  uint32 = 0x00b00000
	CodeCliItemNotAvailable       uint32 = 0x00c00000
	CodeCliInvalidValue           uint32 = 0x00d00000
	CodeCliCannotStartPLC         uint32 = 0x00e00000
	CodeCliAlreadyRun             uint32 = 0x00f00000
	CodeCliCannotStopPLC          uint32 = 0x01000000
	CodeCliFunNotAvailable        uint32 = 0x01400000
	CodeCliInvalidDataSizeRecvd   uint32 = 0x01600000
	CodeCliNeedPassword           uint32 = 0x01d00000
	CodeCliInvalidPassword        uint32 = 0x01e00000
	CodeCliNoPasswordToSetOrClear uint32 = 0x01f00000
	CodeCliAlreadyStop            uint32 = 0x01300000
	CodeCliJobTimeout             uint32 = 0x02000000
	CodeCliPartialDataRead        uint32 = 0x02100000
	CodeCliBufferTooSmall         uint32 = 0x02200000
	CodeCliFunctionRefused        uint32 = 0x02300000
	CodeCliDestroying             uint32 = 0x02400000
	CodeCliInvalidParamNumber     uint32 = 0x02500000
	CodeCliCannotChangeParam      uint32 = 0x02600000

	tcpMask uint32 = 0x0000ffff
	isoMask uint32 = 0x000f0000
	cliMask uint32 = 0xfff00000
)

var codeText = map[uint32]string{
	CodeTCPSocketCreation:    "TCP : Error creating the socket",
	CodeTCPConnectionTimeout: "TCP : Connection timed out",
	CodeTCPConnectionFailed:  "TCP : Connection error",
	CodeTCPReceiveTimeout:    "TCP : Data receive timeout",
	CodeTCPDataReceive:       "TCP : Error receiving data",
	CodeTCPSendTimeout:       "TCP : Data send timeout",
	CodeTCPDataSend:          "TCP : Error sending data",
	CodeTCPConnectionReset:   "TCP : Connection reset by the peer",
	CodeTCPNotConnected:      "TCP : Client not connected",
	CodeTCPUnreachableHost:   "TCP : Unreachable host",

	CodeIsoConnect:          "ISO : Connection error",
	CodeIsoDisconnect:       "ISO : Disconnect error",
	CodeIsoInvalidPDU:       "ISO : Bad format",
	CodeIsoInvalidDataSize:  "ISO : Datasize passed to send/recv buffer is invalid",
	CodeIsoNullPointer:      "ISO : Null passed as pointer",
	CodeIsoShortPacket:      "ISO : A short packet received",
	CodeIsoTooManyFragments: "ISO : Too many packets without EoT flag",
	CodeIsoPduOverflow:      "ISO : The sum of fragments data exceeded maximum packet size",
	CodeIsoSendPacket:       "ISO : An error occurred during send",
	CodeIsoRecvPacket:       "ISO : An error occurred during recv",
	CodeIsoInvalidParams:    "ISO : Invalid TSAP params",

	CodeNegotiatingPDU:            "CPU : Error in PDU negotiation",
	CodeCliInvalidParams:          "CLI : invalid param(s) supplied",
	CodeCliJobPending:             "CLI : Job pending",
	CodeCliTooManyItems:           "CLI : too may items (>20) in multi read/write",
	CodeCliInvalidWordLen:         "CLI : invalid WordLength",
	CodeCliPartialDataWritten:     "CLI : Partial data written",
	CodeCliSizeOverPDU:            "CPU : total data exceeds the PDU size",
	CodeCliInvalidPlcAnswer:       "CLI : invalid CPU answer",
	CodeCliAddressOutOfRange:      "CPU : Address out of range",
	CodeCliInvalidTransportSize:   "CPU : Invalid Transport size",
	CodeCliWriteDataSizeMismatch:  "CPU : Data size mismatch",
	CodeCliItemNotAvailable:       "CPU : Item not available",
	CodeCliInvalidValue:           "CPU : Invalid value supplied",
	CodeCliCannotStartPLC:         "CPU : Cannot start PLC",
	CodeCliAlreadyRun:             "CPU : PLC already RUN",
	CodeCliCannotStopPLC:          "CPU : Cannot stop PLC",
	CodeCliFunNotAvailable:        "CPU : Function not available",
	CodeCliInvalidDataSizeRecvd:   "CLI : Invalid data size received",
	CodeCliNeedPassword:           "CPU : Function not authorized for current protection level",
	CodeCliInvalidPassword:        "CPU : Invalid password",
	CodeCliNoPasswordToSetOrClear: "CPU : No password to set or clear",
	CodeCliAlreadyStop:            "CPU : PLC already STOP",
	CodeCliJobTimeout:             "CLI : Job Timeout",
	CodeCliPartialDataRead:        "CLI : Partial data read",
	CodeCliBufferTooSmall:         "CLI : The buffer supplied is too small to accomplish the operation",
	CodeCliFunctionRefused:        "CLI : function refused by CPU (Unknown error)",
	CodeCliDestroying:             "CLI : Cannot perform (destroying)",
	CodeCliInvalidParamNumber:     "CLI : Invalid Param Number",
	CodeCliCannotChangeParam:      "CLI : Cannot change this param now",
}

// Error is a protocol error identified by its result code.
type Error struct {
	Code uint32
	Err  error
}

func NewError(code uint32, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrorText(e.Code), e.Err)
	}
	return ErrorText(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the result code only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Link reports whether the error means the connection is no longer usable.
func (e *Error) Link() bool {
	return e.Code&(tcpMask|isoMask) != 0
}

var (
	ErrTCPNotConnected        = &Error{Code: CodeTCPNotConnected}
	ErrIsoConnect             = &Error{Code: CodeIsoConnect}
	ErrIsoInvalidPDU          = &Error{Code: CodeIsoInvalidPDU}
	ErrIsoShortPacket         = &Error{Code: CodeIsoShortPacket}
	ErrNegotiatingPDU         = &Error{Code: CodeNegotiatingPDU}
	ErrCliInvalidParams       = &Error{Code: CodeCliInvalidParams}
	ErrCliTooManyItems        = &Error{Code: CodeCliTooManyItems}
	ErrCliInvalidWordLen      = &Error{Code: CodeCliInvalidWordLen}
	ErrCliSizeOverPDU         = &Error{Code: CodeCliSizeOverPDU}
	ErrCliInvalidPlcAnswer    = &Error{Code: CodeCliInvalidPlcAnswer}
	ErrCliItemNotAvailable    = &Error{Code: CodeCliItemNotAvailable}
	ErrCliInvalidValue        = &Error{Code: CodeCliInvalidValue}
	ErrCliCannotStartPLC      = &Error{Code: CodeCliCannotStartPLC}
	ErrCliAlreadyRun          = &Error{Code: CodeCliAlreadyRun}
	ErrCliCannotStopPLC       = &Error{Code: CodeCliCannotStopPLC}
	ErrCliAlreadyStop         = &Error{Code: CodeCliAlreadyStop}
	ErrCliJobTimeout          = &Error{Code: CodeCliJobTimeout}
	ErrCliPartialDataRead     = &Error{Code: CodeCliPartialDataRead}
	ErrCliBufferTooSmall      = &Error{Code: CodeCliBufferTooSmall}
	ErrCliFunctionRefused     = &Error{Code: CodeCliFunctionRefused}
	ErrCliDestroying          = &Error{Code: CodeCliDestroying}
	ErrCliInvalidParamNumber  = &Error{Code: CodeCliInvalidParamNumber}
	ErrCliCannotChangeParam   = &Error{Code: CodeCliCannotChangeParam}
	ErrCliInvalidDataSizeRecv = &Error{Code: CodeCliInvalidDataSizeRecvd}
)

// Code maps err to its integer result code; nil maps to 0.
func Code(err error) int {
	if err == nil {
		return int(CodeOK)
	}
	var e *Error
	if errors.As(err, &e) {
		return int(e.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return int(CodeCliJobTimeout)
	}
	return int(CodeCliFunctionRefused)
}

// IsLinkError reports whether err broke the TCP or ISO link.
func IsLinkError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Link()
	}
	return errors.Is(err, ErrBadConn)
}

// ErrorText renders a result code, one part per error class.
func ErrorText(code uint32) string {
	if code == CodeOK {
		return "OK"
	}
	if text, ok := codeText[code]; ok {
		return text
	}

	parts := make([]string, 0, 3)
	for _, mask := range []uint32{cliMask, isoMask, tcpMask} {
		part := code & mask
		if part == 0 {
			continue
		}
		if text, ok := codeText[part]; ok {
			parts = append(parts, text)
		} else {
			parts = append(parts, fmt.Sprintf("Unknown error (0x%08x)", part))
		}
	}
	return strings.Join(parts, ", ")
}

// CPU-side return codes, either an item return code or the header
// error class and code joined into one word.
const (
	cpuCodeAddressOutOfRange     uint16 = 0x0005
	cpuCodeInvalidTransportSize  uint16 = 0x0006
	cpuCodeWriteDataSizeMismatch uint16 = 0x0007
	cpuCodeItemNotAvailable      uint16 = 0x000a
	cpuCodeItemNotAvailable1     uint16 = 0xd209
	cpuCodeDataOverPDU           uint16 = 0x8500
	cpuCodeInvalidValue          uint16 = 0xdc01
	cpuCodeFunNotAvailable       uint16 = 0x8104
	cpuCodeNeedPassword          uint16 = 0xd241
	cpuCodeInvalidPassword       uint16 = 0xd602
	cpuCodeNoPasswordToSet       uint16 = 0xd604
	cpuCodeNoPasswordToClear     uint16 = 0xd605
)

// CpuError translates a code returned by the PLC into a client error.
func CpuError(code uint16) error {
	switch code {
	case 0:
		return nil
	case cpuCodeAddressOutOfRange:
		return &Error{Code: CodeCliAddressOutOfRange}
	case cpuCodeInvalidTransportSize:
		return &Error{Code: CodeCliInvalidTransportSize}
	case cpuCodeWriteDataSizeMismatch:
		return &Error{Code: CodeCliWriteDataSizeMismatch}
	case cpuCodeItemNotAvailable, cpuCodeItemNotAvailable1:
		return &Error{Code: CodeCliItemNotAvailable}
	case cpuCodeDataOverPDU:
		return &Error{Code: CodeCliSizeOverPDU}
	case cpuCodeInvalidValue:
		return &Error{Code: CodeCliInvalidValue}
	case cpuCodeFunNotAvailable:
		return &Error{Code: CodeCliFunNotAvailable}
	case cpuCodeNeedPassword:
		return &Error{Code: CodeCliNeedPassword}
	case cpuCodeInvalidPassword:
		return &Error{Code: CodeCliInvalidPassword}
	case cpuCodeNoPasswordToSet, cpuCodeNoPasswordToClear:
		return &Error{Code: CodeCliNoPasswordToSetOrClear}
	default:
		return &Error{Code: CodeCliFunctionRefused, Err: fmt.Errorf("cpu code 0x%04x", code)}
	}
}
