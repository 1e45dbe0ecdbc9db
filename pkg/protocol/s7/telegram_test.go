package s7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

func TestIsoConnectRequest(t *testing.T) {
	assert.Equal(t, []byte{
		0x03, 0x00, 0x00, 0x16,
		0x11, 0xe0, 0x00, 0x00, 0x01, 0x00, 0x00,
		0xc0, 0x01, 0x0a,
		0xc1, 0x02, 0x01, 0x00,
		0xc2, 0x02, 0x01, 0x02,
	}, newIsoConnectRequest(0x0100, 0x0102, 0x0100, 0x0000))
}

func TestReadVarRequest(t *testing.T) {
	pdu := newReadVarRequest([]*s7runtime.DataItem{
		{Area: s7runtime.DB, WordLen: s7runtime.WLByte, DBNumber: 1, Start: 2, Amount: 4},
		{Area: s7runtime.M, WordLen: s7runtime.WLBit, Start: 10*8 + 1, Amount: 1},
	})
	assert.Equal(t, []byte{
		0x32, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x1a, 0x00, 0x00,
		0x04, 0x02,
		0x12, 0x0a, 0x10, 0x02, 0x00, 0x04, 0x00, 0x01, 0x84, 0x00, 0x00, 0x10,
		0x12, 0x0a, 0x10, 0x01, 0x00, 0x01, 0x00, 0x00, 0x83, 0x00, 0x00, 0x51,
	}, pdu)
}

func TestWriteVarRequest(t *testing.T) {
	pdu := newWriteVarRequest([]*s7runtime.DataItem{
		{Area: s7runtime.M, WordLen: s7runtime.WLBit, Start: 3, Amount: 1, Data: []byte{1}},
		{Area: s7runtime.C, WordLen: s7runtime.WLCounter, Start: 1, Amount: 1, Data: []byte{0x00, 0x05}},
		{Area: s7runtime.DB, WordLen: s7runtime.WLByte, DBNumber: 9, Amount: 2, Data: []byte{0xab, 0xcd}},
	})
	data := pdu[requestHeaderSize+2+3*readItemSize:]
	assert.Equal(t, []byte{
		0x00, 0x03, 0x00, 0x01, 0x01, 0x00,
		0x00, 0x09, 0x00, 0x02, 0x00, 0x05,
		0x00, 0x04, 0x00, 0x10, 0xab, 0xcd,
	}, data)
	assert.Equal(t, len(pdu), writeRequestSize([]*s7runtime.DataItem{
		{WordLen: s7runtime.WLBit, Amount: 1},
		{WordLen: s7runtime.WLCounter, Amount: 1},
		{WordLen: s7runtime.WLByte, Amount: 2},
	}))
}

func TestParseS7PDU(t *testing.T) {
	_, err := parseS7PDU([]byte{0x32, 0x03})
	assert.ErrorIs(t, err, s7runtime.ErrIsoShortPacket)

	_, err = parseS7PDU([]byte{0x72, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, s7runtime.ErrCliInvalidPlcAnswer)

	p, err := parseS7PDU([]byte{0x32, 0x03, 0, 0, 0x00, 0x07, 0x00, 0x01, 0x00, 0x01, 0x81, 0x04, 0x29, 0xff})
	require.NoError(t, err)
	assert.Equal(t, uint16(7), p.Ref)
	assert.Equal(t, uint16(0x8104), p.headerError())
	assert.Equal(t, []byte{0x29}, p.Params)
	assert.Equal(t, []byte{0xff}, p.Data)
}

func TestPlcControlTelegrams(t *testing.T) {
	assert.Equal(t, append([]byte{0x29, 0, 0, 0, 0, 0, 0x09}, "P_PROGRAM"...), newPlcStop()[requestHeaderSize:])
	assert.Equal(t, append([]byte{0x28, 0, 0, 0, 0, 0, 0, 0xfd, 0, 0, 0x09}, "P_PROGRAM"...), newPlcHotStart()[requestHeaderSize:])
	assert.Equal(t, append([]byte{0x28, 0, 0, 0, 0, 0, 0, 0xfd, 0, 0x02, 'C', ' ', 0x09}, "P_PROGRAM"...), newPlcColdStart()[requestHeaderSize:])
}

func wordItems(n int) []*s7runtime.DataItem {
	items := make([]*s7runtime.DataItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &s7runtime.DataItem{Area: s7runtime.DB, WordLen: s7runtime.WLByte, DBNumber: 1, Start: i * 2, Amount: 2, Data: make([]byte, 2)})
	}
	return items
}

func TestReadGroups(t *testing.T) {
	items := wordItems(20)

	// 20 item specs need a 252 byte request
	groups := ReadGroups(items, 240)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 19)
	assert.Len(t, groups[1], 1)
	for _, g := range groups {
		assert.LessOrEqual(t, readRequestSize(g), 240)
		assert.LessOrEqual(t, readResponseSize(g), 240)
	}

	assert.Len(t, ReadGroups(items, 480), 1)
	groups = ReadGroups(wordItems(25), 960)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], s7runtime.MaxVars)
}

func TestWriteGroups(t *testing.T) {
	groups := WriteGroups(wordItems(20), 240)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 12)
	assert.Len(t, groups[1], 8)
	for _, g := range groups {
		assert.LessOrEqual(t, writeRequestSize(g), 240)
	}

	// an item is never dropped, even when no group can fit it
	groups = WriteGroups(wordItems(3), 0)
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.Len(t, g, 1)
	}
}
