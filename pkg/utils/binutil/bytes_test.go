package binutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBigEndianRoundTrip(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0xe0}, Uint16ToBytesBigEndian(480))
	assert.Equal(t, uint16(480), ParseUint16BigEndian([]byte{0x01, 0xe0}))

	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, Uint32ToBytesBigEndian(0x12345678))
	assert.Equal(t, uint32(0x12345678), ParseUint32BigEndian([]byte{0x12, 0x34, 0x56, 0x78}))

	assert.Equal(t, uint64(0x0102030405060708), ParseUint64BigEndian(Uint64ToBytesBigEndian(0x0102030405060708)))
}

func TestFloatEncoding(t *testing.T) {
	// 1.5 as IEEE 754 single precision
	assert.Equal(t, []byte{0x3f, 0xc0, 0x00, 0x00}, Float32ToBytesBigEndian(1.5))
	assert.Equal(t, float32(1.5), ParseFloat32BigEndian([]byte{0x3f, 0xc0, 0x00, 0x00}))
	assert.Equal(t, -273.15, ParseFloat64BigEndian(Float64ToBytesBigEndian(-273.15)))
}

func TestWriteUint24(t *testing.T) {
	buf := make([]byte, 3)
	// DBX10.3 => 10*8+3
	WriteUint24(buf, 83)
	assert.Equal(t, []byte{0x00, 0x00, 0x53}, buf)
}

func TestDup(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := Dup(src)
	dst[0] = 9
	assert.Equal(t, byte(1), src[0])
}
