package s7

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

func TestPlcStatus(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	ctx := context.Background()

	status, err := c.PlcStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, s7runtime.CpuStatusRun, status)

	plc.setStatus(s7runtime.CpuStatusStop)
	status, err = c.PlcStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, s7runtime.CpuStatusStop, status)

	plc.setStatus(0x02)
	status, err = c.PlcStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, s7runtime.CpuStatusUnknown, status)
}

func TestReadSZLFragments(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)

	szl, err := c.ReadSZL(context.Background(), 0x0011, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0011), szl.ID)
	assert.Equal(t, uint16(4), szl.LengthDR)
	assert.Equal(t, uint16(2), szl.NDR)
	assert.Equal(t, []byte{0x00, 0x01, 0x36, 0x45, 0x00, 0x07, 0x36, 0x45}, szl.Data)
}

func TestReadSZLUnknown(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)

	_, err := c.ReadSZL(context.Background(), 0x0f00, 0)
	assert.ErrorIs(t, err, s7runtime.ErrCliFunctionRefused)
	assert.True(t, c.Connected())
}

func TestPlcStopStart(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	ctx := context.Background()

	require.NoError(t, c.PlcStop(ctx))
	assert.ErrorIs(t, c.PlcStop(ctx), s7runtime.ErrCliAlreadyStop)

	require.NoError(t, c.PlcHotStart(ctx))
	assert.ErrorIs(t, c.PlcHotStart(ctx), s7runtime.ErrCliAlreadyRun)

	require.NoError(t, c.PlcStop(ctx))
	require.NoError(t, c.PlcColdStart(ctx))
	assert.Equal(t, byte(0x02), plc.lastRequest()[requestHeaderSize+9])
}

func TestPlcStartRefused(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	plc.setHook(func(pdu []byte) []byte {
		return ackData(pdu, 0, []byte{funcStart, 0x02}, nil)
	})
	assert.ErrorIs(t, c.PlcHotStart(context.Background()), s7runtime.ErrCliCannotStartPLC)

	plc.setHook(func(pdu []byte) []byte {
		return ackData(pdu, 0x8104, []byte{funcStop}, nil)
	})
	assert.ErrorIs(t, c.PlcStop(context.Background()), s7runtime.ErrCliCannotStopPLC)
}
