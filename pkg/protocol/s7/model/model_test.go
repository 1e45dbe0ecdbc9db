package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7 "harnss7/pkg/protocol/s7/runtime"
)

func TestRackSlotTSAP(t *testing.T) {
	local, remote, err := S7Modelers["s7300"].TSAP(&s7.S7AddressOption{Rack: 0, Slot: 2})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), local)
	assert.Equal(t, uint16(0x0102), remote)

	_, remote, err = S7Modelers["s71500"].TSAP(&s7.S7AddressOption{Rack: 1, Slot: 1, ConnectionType: "op"})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0221), remote)

	_, _, err = S7Modelers["s71200"].TSAP(&s7.S7AddressOption{Rack: 8})
	assert.Error(t, err)

	_, _, err = S7Modelers["s71200"].TSAP(&s7.S7AddressOption{ConnectionType: "pgx"})
	assert.Error(t, err)
}

func TestFixedTSAP(t *testing.T) {
	local, remote, err := S7Modelers["s7200"].TSAP(&s7.S7AddressOption{})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1000), local)
	assert.Equal(t, uint16(0x1001), remote)

	local, remote, err = S7Modelers["logo"].TSAP(&s7.S7AddressOption{RemoteTSAP: 0x0300})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), local)
	assert.Equal(t, uint16(0x0300), remote)
}

func TestPDURequest(t *testing.T) {
	assert.Equal(t, 480, S7Modelers["s71500"].PDURequest(&s7.S7AddressOption{}))
	assert.Equal(t, 960, S7Modelers["s71500"].PDURequest(&s7.S7AddressOption{PDURequest: 960}))
	assert.Equal(t, 240, S7Modelers["logo"].PDURequest(&s7.S7AddressOption{}))
}
