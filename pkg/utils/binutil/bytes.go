package binutil

import "math"

// S7 is big-endian on the wire, so only ABCD ordering is kept here.

// ParseUint16 解析
func ParseUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

func ParseUint16BigEndian(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

// ABCD
func ParseUint32BigEndian(buf []byte) uint32 {
	return uint32(buf[0])<<24 +
		uint32(buf[1])<<16 +
		uint32(buf[2])<<8 +
		uint32(buf[3])
}

// ABCD EFGH
func ParseUint64BigEndian(b []byte) uint64 {
	return (uint64(b[0]) << 56) |
		(uint64(b[1]) << 48) |
		(uint64(b[2]) << 40) |
		(uint64(b[3]) << 32) |
		(uint64(b[4]) << 24) |
		(uint64(b[5]) << 16) |
		(uint64(b[6]) << 8) |
		uint64(b[7])
}

func ParseFloat32BigEndian(buf []byte) float32 {
	return math.Float32frombits(ParseUint32BigEndian(buf))
}

func ParseFloat64BigEndian(buf []byte) float64 {
	return math.Float64frombits(ParseUint64BigEndian(buf))
}

// Uint16ToBytesBigEndian 编码
func Uint16ToBytesBigEndian(value uint16) []byte {
	buf := make([]byte, 2)
	WriteUint16(buf, value)
	return buf
}

func Uint32ToBytesBigEndian(value uint32) []byte {
	buf := make([]byte, 4)
	WriteUint32(buf, value)
	return buf
}

func Uint64ToBytesBigEndian(value uint64) []byte {
	buf := make([]byte, 8)
	WriteUint64(buf, value)
	return buf
}

func Float32ToBytesBigEndian(value float32) []byte {
	return Uint32ToBytesBigEndian(math.Float32bits(value))
}

func Float64ToBytesBigEndian(value float64) []byte {
	return Uint64ToBytesBigEndian(math.Float64bits(value))
}

// WriteUint64 编码
func WriteUint64(buf []byte, value uint64) {
	buf[0] = byte(value >> 56)
	buf[1] = byte(value >> 48)
	buf[2] = byte(value >> 40)
	buf[3] = byte(value >> 32)
	buf[4] = byte(value >> 24)
	buf[5] = byte(value >> 16)
	buf[6] = byte(value >> 8)
	buf[7] = byte(value)
}

// WriteUint32 编码
func WriteUint32(buf []byte, value uint32) {
	buf[0] = byte(value >> 24)
	buf[1] = byte(value >> 16)
	buf[2] = byte(value >> 8)
	buf[3] = byte(value)
}

// WriteUint24 编码, used by the 3-byte S7 bit address.
func WriteUint24(buf []byte, value uint32) {
	buf[0] = byte(value >> 16)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value)
}

// WriteUint16 编码
func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

func Dup(buf []byte) []byte {
	b := make([]byte, len(buf))
	copy(b, buf)
	return b
}
