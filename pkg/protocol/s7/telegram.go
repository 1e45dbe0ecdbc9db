package s7

import (
	"github.com/pkg/errors"
	genericruntime "harnss7/pkg/generic/runtime"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

// ROSCTR, the kind of S7 PDU.
const (
	rosctrJob      = 0x01
	rosctrAck      = 0x02
	rosctrAckData  = 0x03
	rosctrUserData = 0x07
)

// Job functions.
const (
	funcSetupComm = 0xf0
	funcReadVar   = 0x04
	funcWriteVar  = 0x05
	funcStart     = 0x28
	funcStop      = 0x29
)

const (
	s7ProtocolID      = 0x32
	requestHeaderSize = 10
	ackHeaderSize     = 12
	readItemSize      = 12
	itemReturnOK      = 0xff

	// fixed overhead of a single-item read or write telegram
	readOverhead  = 18
	writeOverhead = 35
)

const programInvocation = "P_PROGRAM"

// s7PDU is a decoded S7 PDU.
type s7PDU struct {
	ROSCTR   byte
	Ref      uint16
	ErrClass byte
	ErrCode  byte
	Params   []byte
	Data     []byte
}

func (p *s7PDU) headerError() uint16 {
	return uint16(p.ErrClass)<<8 | uint16(p.ErrCode)
}

// newS7PDU encodes header, parameters and data; the reference is set on send.
func newS7PDU(rosctr byte, params, data []byte) []byte {
	buf := make([]byte, requestHeaderSize, requestHeaderSize+len(params)+len(data))
	buf[0] = s7ProtocolID
	buf[1] = rosctr
	binutil.WriteUint16(buf[6:], uint16(len(params)))
	binutil.WriteUint16(buf[8:], uint16(len(data)))
	buf = append(buf, params...)
	return append(buf, data...)
}

// parseS7PDU decodes an S7 PDU received from the PLC.
func parseS7PDU(buf []byte) (*s7PDU, error) {
	if len(buf) < requestHeaderSize {
		return nil, errors.Wrapf(s7runtime.ErrIsoShortPacket, "s7 pdu of %d bytes", len(buf))
	}
	if buf[0] != s7ProtocolID {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidPlcAnswer, "protocol id 0x%02x", buf[0])
	}
	p := &s7PDU{
		ROSCTR: buf[1],
		Ref:    binutil.ParseUint16BigEndian(buf[4:]),
	}
	parLen := int(binutil.ParseUint16BigEndian(buf[6:]))
	dataLen := int(binutil.ParseUint16BigEndian(buf[8:]))

	headerSize := requestHeaderSize
	if p.ROSCTR == rosctrAck || p.ROSCTR == rosctrAckData {
		headerSize = ackHeaderSize
		if len(buf) < headerSize {
			return nil, errors.Wrapf(s7runtime.ErrIsoShortPacket, "s7 ack of %d bytes", len(buf))
		}
		p.ErrClass = buf[10]
		p.ErrCode = buf[11]
	}
	if len(buf) < headerSize+parLen+dataLen {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidPlcAnswer, "s7 pdu of %d bytes announces %d", len(buf), headerSize+parLen+dataLen)
	}
	p.Params = buf[headerSize : headerSize+parLen]
	p.Data = buf[headerSize+parLen : headerSize+parLen+dataLen]
	return p, nil
}

func newSetupCommunication(pduRequest int) []byte {
	params := []byte{
		funcSetupComm, 0x00,
		0x00, 0x01, // max AmQ calling
		0x00, 0x01, // max AmQ called
		0x00, 0x00, // PDU length
	}
	binutil.WriteUint16(params[6:], uint16(pduRequest))
	return newS7PDU(rosctrJob, params, nil)
}

// itemAddress is the 24 bit any-pointer address of a transfer.
func itemAddress(wordLen s7runtime.WordLen, start int) uint32 {
	switch wordLen {
	case s7runtime.WLBit, s7runtime.WLCounter, s7runtime.WLTimer:
		return uint32(start)
	default:
		return uint32(start) << 3
	}
}

// appendRequestItem encodes the any-pointer of an item.
func appendRequestItem(buf []byte, item *s7runtime.DataItem) []byte {
	it := make([]byte, readItemSize)
	it[0] = 0x12 // variable specification
	it[1] = 0x0a // length of the following address
	it[2] = 0x10 // syntax id s7-any
	it[3] = byte(item.WordLen)
	binutil.WriteUint16(it[4:], uint16(item.Amount))
	if item.Area == s7runtime.DB {
		binutil.WriteUint16(it[6:], uint16(item.DBNumber))
	}
	it[8] = byte(item.Area)
	binutil.WriteUint24(it[9:], itemAddress(item.WordLen, item.Start))
	return append(buf, it...)
}

func newReadVarRequest(items []*s7runtime.DataItem) []byte {
	params := make([]byte, 0, 2+len(items)*readItemSize)
	params = append(params, funcReadVar, byte(len(items)))
	for _, item := range items {
		params = appendRequestItem(params, item)
	}
	return newS7PDU(rosctrJob, params, nil)
}

// dataTransportSize picks the transport size and length field of a write.
func dataTransportSize(item *s7runtime.DataItem) (byte, uint16) {
	size := item.Size()
	switch item.WordLen {
	case s7runtime.WLBit:
		return s7runtime.TSResBit, uint16(size)
	case s7runtime.WLCounter, s7runtime.WLTimer:
		return s7runtime.TSResOctet, uint16(size)
	default:
		return s7runtime.TSResByte, uint16(size * 8)
	}
}

func newWriteVarRequest(items []*s7runtime.DataItem) []byte {
	params := make([]byte, 0, 2+len(items)*readItemSize)
	params = append(params, funcWriteVar, byte(len(items)))
	var data []byte
	for i, item := range items {
		params = appendRequestItem(params, item)

		ts, length := dataTransportSize(item)
		size := item.Size()
		data = append(data, 0x00, ts, byte(length>>8), byte(length))
		data = append(data, item.Data[:size]...)
		if size%2 != 0 && i < len(items)-1 {
			data = append(data, 0x00)
		}
	}
	return newS7PDU(rosctrJob, params, data)
}

// readResponseSize is the size of the answer to a read of items.
func readResponseSize(items []*s7runtime.DataItem) int {
	size := ackHeaderSize + 2
	for i, item := range items {
		size += 4 + item.Size()
		if item.Size()%2 != 0 && i < len(items)-1 {
			size++
		}
	}
	return size
}

func writeRequestSize(items []*s7runtime.DataItem) int {
	size := readRequestSize(items)
	for i, item := range items {
		size += 4 + item.Size()
		if item.Size()%2 != 0 && i < len(items)-1 {
			size++
		}
	}
	return size
}

func readRequestSize(items []*s7runtime.DataItem) int {
	return requestHeaderSize + 2 + len(items)*readItemSize
}

// ReadGroups splits items into ReadMultiVars calls whose request and answer fit pduLength.
func ReadGroups(items []*s7runtime.DataItem, pduLength int) [][]*s7runtime.DataItem {
	return genericruntime.InGroupsFitting(items, s7runtime.MaxVars, func(group []*s7runtime.DataItem) bool {
		return fitsRead(group, pduLength)
	})
}

func fitsRead(items []*s7runtime.DataItem, pduLength int) bool {
	return len(items) <= s7runtime.MaxVars && readRequestSize(items) <= pduLength && readResponseSize(items) <= pduLength
}

// WriteGroups splits items into WriteMultiVars calls whose request fits pduLength.
func WriteGroups(items []*s7runtime.DataItem, pduLength int) [][]*s7runtime.DataItem {
	return genericruntime.InGroupsFitting(items, s7runtime.MaxVars, func(group []*s7runtime.DataItem) bool {
		return writeRequestSize(group) <= pduLength
	})
}

// parseReadVarResponse copies the data of each item and records per-item errors.
func parseReadVarResponse(p *s7PDU, items []*s7runtime.DataItem) error {
	if len(p.Params) < 2 || p.Params[0] != funcReadVar {
		return errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "read var answer")
	}
	if int(p.Params[1]) != len(items) {
		return errors.Wrapf(s7runtime.ErrCliInvalidPlcAnswer, "read var answer has %d items, want %d", p.Params[1], len(items))
	}

	data := p.Data
	offset := 0
	for i, item := range items {
		if len(data) < offset+4 {
			if offset+1 <= len(data) && data[offset] != itemReturnOK {
				item.Err = s7runtime.CpuError(uint16(data[offset]))
				continue
			}
			return errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "read var answer truncated")
		}
		if data[offset] != itemReturnOK {
			item.Err = s7runtime.CpuError(uint16(data[offset]))
			offset += 4
			continue
		}

		ts := data[offset+1]
		size := int(binutil.ParseUint16BigEndian(data[offset+2:]))
		if ts != s7runtime.TSResOctet && ts != s7runtime.TSResReal && ts != s7runtime.TSResBit {
			size = size >> 3
		}
		if len(data) < offset+4+size {
			return errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "read var item truncated")
		}
		if size != item.Size() {
			item.Err = errors.Wrapf(s7runtime.ErrCliInvalidDataSizeRecv, "item %d: %d bytes, want %d", i, size, item.Size())
		} else {
			if len(item.Data) < size {
				item.Data = make([]byte, size)
			}
			copy(item.Data, data[offset+4:offset+4+size])
			item.Err = nil
		}
		offset += 4 + size
		if size%2 != 0 && i < len(items)-1 {
			offset++
		}
	}
	return nil
}

func parseWriteVarResponse(p *s7PDU, items []*s7runtime.DataItem) error {
	if len(p.Params) < 2 || p.Params[0] != funcWriteVar {
		return errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "write var answer")
	}
	if int(p.Params[1]) != len(items) || len(p.Data) < len(items) {
		return errors.Wrapf(s7runtime.ErrCliInvalidPlcAnswer, "write var answer has %d items, want %d", p.Params[1], len(items))
	}
	for i, item := range items {
		if p.Data[i] == itemReturnOK {
			item.Err = nil
		} else {
			item.Err = s7runtime.CpuError(uint16(p.Data[i]))
		}
	}
	return nil
}

// SZL user-data telegrams.
func newSZLFirstRequest(id, index uint16) []byte {
	params := []byte{0x00, 0x01, 0x12, 0x04, 0x11, 0x44, 0x01, 0x00}
	data := []byte{itemReturnOK, s7runtime.TSResOctet, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00}
	binutil.WriteUint16(data[4:], id)
	binutil.WriteUint16(data[6:], index)
	return newS7PDU(rosctrUserData, params, data)
}

func newSZLNextRequest(seq byte) []byte {
	params := []byte{0x00, 0x01, 0x12, 0x08, 0x12, 0x44, 0x01, seq, 0x00, 0x00, 0x00, 0x00}
	data := []byte{0x0a, 0x00, 0x00, 0x00}
	return newS7PDU(rosctrUserData, params, data)
}

func newPlcStop() []byte {
	params := []byte{funcStop, 0x00, 0x00, 0x00, 0x00, 0x00, byte(len(programInvocation))}
	params = append(params, programInvocation...)
	return newS7PDU(rosctrJob, params, nil)
}

func newPlcHotStart() []byte {
	params := []byte{funcStart, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xfd, 0x00, 0x00, byte(len(programInvocation))}
	params = append(params, programInvocation...)
	return newS7PDU(rosctrJob, params, nil)
}

func newPlcColdStart() []byte {
	params := []byte{funcStart, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xfd, 0x00, 0x02, 'C', ' ', byte(len(programInvocation))}
	params = append(params, programInvocation...)
	return newS7PDU(rosctrJob, params, nil)
}
