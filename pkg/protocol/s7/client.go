package s7

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"k8s.io/klog/v2"
)

// Client is a connection to one S7 CPU. Jobs are serialised: a client runs
// one telegram exchange at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn

	address    string
	remotePort int
	localTSAP  uint16
	remoteTSAP uint16
	connType   s7runtime.ConnectionType
	srcRef     uint16
	dstRef     uint16
	pduRequest int
	pduRef     uint16

	pingTimeout time.Duration
	sendTimeout time.Duration
	recvTimeout time.Duration

	pduLength atomic.Int32
	connected atomic.Bool
	destroyed atomic.Bool
	lastError atomic.Uint32
	execTime  atomic.Duration
}

var _ s7runtime.Messenger = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		remotePort:  s7runtime.DefaultRemotePort,
		localTSAP:   s7runtime.DefaultLocalTSAP,
		connType:    s7runtime.PG,
		srcRef:      s7runtime.DefaultSrcRef,
		pduRequest:  s7runtime.DefaultPDURequest,
		pingTimeout: s7runtime.DefaultPingTimeout * time.Millisecond,
		sendTimeout: s7runtime.DefaultSendTimeout * time.Millisecond,
		recvTimeout: s7runtime.DefaultRecvTimeout * time.Millisecond,
	}
}

// job runs fn under the client lock and keeps the job bookkeeping:
// execution time, last error and dropping a broken link.
func (c *Client) job(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return s7runtime.ErrCliDestroying
	}

	start := time.Now()
	err := fn(ctx)
	c.execTime.Store(time.Since(start))
	c.lastError.Store(uint32(s7runtime.Code(err)))
	if err != nil {
		if s7runtime.IsLinkError(err) || s7runtime.Code(err) == int(s7runtime.CodeCliJobTimeout) {
			c.closeConn()
		}
		klog.V(2).InfoS("S7 job failed", "job", name, "address", c.address, "err", err)
	}
	return err
}

// exchange sends one S7 PDU and returns the matching answer.
func (c *Client) exchange(ctx context.Context, pdu []byte) (*s7PDU, error) {
	if c.conn == nil || !c.connected.Load() {
		return nil, s7runtime.ErrTCPNotConnected
	}
	c.pduRef++
	if c.pduRef == 0 {
		c.pduRef = 1
	}
	ref := c.pduRef
	pdu[4] = byte(ref >> 8)
	pdu[5] = byte(ref)

	stop := watch(ctx, c.conn)
	defer stop()
	if err := c.sendPacket(ctx, newIsoDataPacket(pdu)); err != nil {
		return nil, err
	}
	buf, err := c.recvPDU(ctx)
	if err != nil {
		return nil, err
	}
	answer, err := parseS7PDU(buf)
	if err != nil {
		return nil, err
	}
	if answer.Ref != ref {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidPlcAnswer, "pdu reference %d, want %d", answer.Ref, ref)
	}
	return answer, nil
}

// ConnectTo addresses the CPU at rack/slot through the current connection
// type and connects.
func (c *Client) ConnectTo(ctx context.Context, address string, rack, slot int) error {
	if rack < 0 || rack > 7 || slot < 0 || slot > 31 {
		return errors.Wrapf(s7runtime.ErrCliInvalidParams, "rack %d slot %d", rack, slot)
	}
	c.mu.Lock()
	c.address = address
	c.remoteTSAP = s7runtime.RemoteTSAP(c.connType, rack, slot)
	c.mu.Unlock()
	return c.Connect(ctx)
}

// SetConnectionParams sets the address and both TSAPs, for CPUs addressed
// without rack and slot.
func (c *Client) SetConnectionParams(address string, localTSAP, remoteTSAP uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
	c.localTSAP = localTSAP
	c.remoteTSAP = remoteTSAP
}

func (c *Client) SetConnectionType(ct s7runtime.ConnectionType) error {
	if _, ok := s7runtime.ConnectionTypeToString[ct]; !ok {
		return errors.Wrapf(s7runtime.ErrCliInvalidParams, "connection type 0x%02x", uint16(ct))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connType = ct
	return nil
}

// Connect opens the TCP link, runs the ISO handshake and negotiates the PDU
// length. It is a no-op on a connected client.
func (c *Client) Connect(ctx context.Context) error {
	return c.job(ctx, "connect", func(ctx context.Context) error {
		if c.connected.Load() {
			return nil
		}
		if c.address == "" {
			return errors.Wrap(s7runtime.ErrCliInvalidParams, "empty address")
		}

		dialer := net.Dialer{Timeout: c.pingTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.address, strconv.Itoa(c.remotePort)))
		if err != nil {
			return dialError(err)
		}
		c.conn = conn
		c.connected.Store(true)

		stop := watch(ctx, conn)
		err = c.isoConnect(ctx)
		stop()
		if err != nil {
			c.closeConn()
			return err
		}
		if err = c.negotiatePDU(ctx); err != nil {
			c.closeConn()
			return err
		}
		klog.V(2).InfoS("Connected to s7 plc", "address", c.address, "remoteTSAP", c.remoteTSAP, "pdu", c.pduLength.Load())
		return nil
	})
}

func (c *Client) negotiatePDU(ctx context.Context) error {
	answer, err := c.exchange(ctx, newSetupCommunication(c.pduRequest))
	if err != nil {
		if s7runtime.IsLinkError(err) {
			return err
		}
		return s7runtime.NewError(s7runtime.CodeNegotiatingPDU, err)
	}
	if answer.headerError() != 0 || len(answer.Params) < 8 || answer.Params[0] != funcSetupComm {
		return s7runtime.NewError(s7runtime.CodeNegotiatingPDU, errors.Errorf("setup answer error 0x%04x", answer.headerError()))
	}
	length := int32(answer.Params[6])<<8 | int32(answer.Params[7])
	if length <= 0 {
		return s7runtime.NewError(s7runtime.CodeNegotiatingPDU, errors.Errorf("pdu length %d", length))
	}
	c.pduLength.Store(length)
	return nil
}

// closeConn drops the link; the caller holds the lock.
func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)
	c.pduLength.Store(0)
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeConn()
	return nil
}

// Destroy disconnects and makes every later job fail.
func (c *Client) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed.Store(true)
	c.closeConn()
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// PDULength is the negotiated PDU length, 0 while disconnected.
func (c *Client) PDULength() int {
	return int(c.pduLength.Load())
}

func (c *Client) PDURequested() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pduRequest
}

// LastError is the result code of the last job.
func (c *Client) LastError() int {
	return int(c.lastError.Load())
}

func (c *Client) ExecTime() time.Duration {
	return c.execTime.Load()
}

func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Reconnect drops the link and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Disconnect()
	return c.Connect(ctx)
}

func (c *Client) Available() bool {
	return c.connected.Load() && !c.destroyed.Load()
}

func (c *Client) Close() {
	_ = c.Disconnect()
}
