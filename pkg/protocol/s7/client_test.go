package s7

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

func TestConnectTo(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.client(t)

	require.NoError(t, c.ConnectTo(context.Background(), "127.0.0.1", 0, 2))
	assert.True(t, c.Connected())
	assert.Equal(t, 240, c.PDULength())
	assert.Equal(t, 480, c.PDURequested())
	assert.Equal(t, uint16(0x0102), plc.remoteTSAP())
	assert.Equal(t, 0, c.LastError())

	// connecting twice is a no-op
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Disconnect())
	assert.False(t, c.Connected())
	assert.Equal(t, 0, c.PDULength())
}

func TestConnectToConnectionType(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.client(t)
	require.NoError(t, c.SetConnectionType(s7runtime.OP))
	require.NoError(t, c.ConnectTo(context.Background(), "127.0.0.1", 1, 3))
	assert.Equal(t, uint16(0x0223), plc.remoteTSAP())

	assert.Error(t, c.SetConnectionType(0x10))
}

func TestConnectInvalid(t *testing.T) {
	c := NewClient()
	defer c.Destroy()

	err := c.ConnectTo(context.Background(), "127.0.0.1", 8, 1)
	assert.ErrorIs(t, err, s7runtime.ErrCliInvalidParams)

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, s7runtime.ErrCliInvalidParams)
	assert.Equal(t, int(s7runtime.CodeCliInvalidParams), c.LastError())
}

func TestConnectRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c := NewClient()
	defer c.Destroy()
	require.NoError(t, c.SetParam(s7runtime.RemotePort, port))
	err = c.ConnectTo(context.Background(), "127.0.0.1", 0, 2)
	require.Error(t, err)
	assert.True(t, s7runtime.IsLinkError(err))
	assert.False(t, c.Connected())
}

func TestNegotiatePDURefused(t *testing.T) {
	plc := newFakePLC(t)
	plc.setHook(func(pdu []byte) []byte {
		if pdu[requestHeaderSize] == funcSetupComm {
			return ackData(pdu, 0x8104, []byte{funcSetupComm}, nil)
		}
		return nil
	})
	c := plc.client(t)
	err := c.ConnectTo(context.Background(), "127.0.0.1", 0, 2)
	assert.Equal(t, int(s7runtime.CodeNegotiatingPDU), s7runtime.Code(err))
	assert.False(t, c.Connected())
}

func TestNotConnected(t *testing.T) {
	c := NewClient()
	defer c.Destroy()
	err := c.DBRead(context.Background(), 1, 0, 4, make([]byte, 4))
	assert.ErrorIs(t, err, s7runtime.ErrTCPNotConnected)
}

func TestDestroyed(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	c.Destroy()
	assert.False(t, c.Available())
	err := c.DBRead(context.Background(), 1, 0, 4, make([]byte, 4))
	assert.ErrorIs(t, err, s7runtime.ErrCliDestroying)
}

func TestPDUReferenceMismatch(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	plc.setHook(func(pdu []byte) []byte {
		answer := ackData(pdu, 0, []byte{funcReadVar, 0x01}, []byte{0xff, 0x04, 0x00, 0x08, 0x01})
		answer[5]++
		return answer
	})
	err := c.DBRead(context.Background(), 1, 0, 1, make([]byte, 1))
	assert.ErrorIs(t, err, s7runtime.ErrCliInvalidPlcAnswer)
}

func TestJobTimeout(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	plc.setHook(func(pdu []byte) []byte {
		// swallow the request
		return []byte{}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.DBRead(ctx, 1, 0, 4, make([]byte, 4))
	assert.Equal(t, int(s7runtime.CodeCliJobTimeout), s7runtime.Code(err))
	assert.False(t, c.Connected())
	assert.Equal(t, int(s7runtime.CodeCliJobTimeout), c.LastError())
}

func TestFragmentedAnswer(t *testing.T) {
	plc := newFakePLC(t)
	c := plc.connected(t)
	plc.set(s7runtime.DB, 1, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	plc.setFragment(true)

	buf := make([]byte, 8)
	require.NoError(t, c.DBRead(context.Background(), 1, 0, 8, buf))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
}
