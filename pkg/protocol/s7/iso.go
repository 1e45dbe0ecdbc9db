package s7

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
	"k8s.io/klog/v2"
)

const (
	tpktVersion    = 0x03
	tpktHeaderSize = 4
	cotpDTSize     = 3
	isoHeaderSize  = tpktHeaderSize + cotpDTSize

	cotpCR  = 0xe0 // connection request
	cotpCC  = 0xd0 // connection confirm
	cotpDT  = 0xf0 // data
	cotpEOT = 0x80

	isoTPDUSize1024 = 0x0a

	maxIsoFragments = 64
	maxIsoPacket    = 4096
)

// newIsoConnectRequest builds the COTP connection request.
func newIsoConnectRequest(localTSAP, remoteTSAP, srcRef, dstRef uint16) []byte {
	buf := []byte{
		// TPKT
		tpktVersion, 0x00, 0x00, 0x16,
		// COTP
		0x11,             // length indicator
		cotpCR,           // CR
		0x00, 0x00,       // destination reference
		0x00, 0x00,       // source reference
		0x00,             // class 0
		0xc0, 0x01, isoTPDUSize1024,
		0xc1, 0x02, 0x00, 0x00, // calling TSAP
		0xc2, 0x02, 0x00, 0x00, // called TSAP
	}
	binutil.WriteUint16(buf[6:], dstRef)
	binutil.WriteUint16(buf[8:], srcRef)
	binutil.WriteUint16(buf[16:], localTSAP)
	binutil.WriteUint16(buf[20:], remoteTSAP)
	return buf
}

// newIsoDataPacket wraps an S7 PDU in a single DT TPDU carrying EOT.
func newIsoDataPacket(pdu []byte) []byte {
	buf := make([]byte, isoHeaderSize, isoHeaderSize+len(pdu))
	buf[0] = tpktVersion
	binutil.WriteUint16(buf[2:], uint16(isoHeaderSize+len(pdu)))
	buf[4] = 0x02 // length indicator
	buf[5] = cotpDT
	buf[6] = cotpEOT
	return append(buf, pdu...)
}

// watch makes blocking I/O on conn return as soon as ctx is done.
func watch(ctx context.Context, conn net.Conn) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// sendPacket writes a raw packet, honouring the send timeout.
func (c *Client) sendPacket(ctx context.Context, packet []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.sendTimeout)); err != nil {
		return s7runtime.NewError(s7runtime.CodeIsoSendPacket|s7runtime.CodeTCPDataSend, err)
	}
	klog.V(5).InfoS("Send s7 packet", "address", c.address, "packet", packet)
	if _, err := c.conn.Write(packet); err != nil {
		if ctx.Err() != nil {
			return s7runtime.NewError(s7runtime.CodeCliJobTimeout, ctx.Err())
		}
		return s7runtime.NewError(s7runtime.CodeIsoSendPacket|tcpErrorCode(err, s7runtime.CodeTCPSendTimeout, s7runtime.CodeTCPDataSend), err)
	}
	return nil
}

// recvTPKT reads one whole TPKT frame.
func (c *Client) recvTPKT(ctx context.Context) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx, c.recvTimeout)); err != nil {
		return nil, s7runtime.NewError(s7runtime.CodeIsoRecvPacket|s7runtime.CodeTCPDataReceive, err)
	}

	header := make([]byte, tpktHeaderSize)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, c.recvError(ctx, err)
	}
	if header[0] != tpktVersion {
		return nil, errors.Wrapf(s7runtime.ErrIsoInvalidPDU, "tpkt version %d", header[0])
	}
	length := int(binutil.ParseUint16BigEndian(header[2:]))
	if length < isoHeaderSize {
		return nil, errors.Wrapf(s7runtime.ErrIsoShortPacket, "tpkt length %d", length)
	}
	if length > maxIsoPacket {
		return nil, errors.Wrapf(s7runtime.ErrIsoInvalidPDU, "tpkt length %d", length)
	}

	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(c.conn, frame[tpktHeaderSize:]); err != nil {
		return nil, c.recvError(ctx, err)
	}
	klog.V(5).InfoS("Received s7 packet", "address", c.address, "packet", frame)
	return frame, nil
}

// recvPDU reads DT TPDUs until EOT and returns the reassembled S7 PDU.
func (c *Client) recvPDU(ctx context.Context) ([]byte, error) {
	pdu := make([]byte, 0, c.pduLength.Load())
	for fragments := 0; ; fragments++ {
		if fragments >= maxIsoFragments {
			return nil, s7runtime.NewError(s7runtime.CodeIsoTooManyFragments, nil)
		}
		frame, err := c.recvTPKT(ctx)
		if err != nil {
			return nil, err
		}
		if frame[5] != cotpDT {
			return nil, errors.Wrapf(s7runtime.ErrIsoInvalidPDU, "cotp type 0x%02x", frame[5])
		}
		pdu = append(pdu, frame[isoHeaderSize:]...)
		if len(pdu) > maxIsoPacket {
			return nil, s7runtime.NewError(s7runtime.CodeIsoPduOverflow, nil)
		}
		if frame[6]&cotpEOT != 0 {
			return pdu, nil
		}
	}
}

// isoConnect runs the COTP connection request/confirm handshake.
func (c *Client) isoConnect(ctx context.Context) error {
	request := newIsoConnectRequest(c.localTSAP, c.remoteTSAP, c.srcRef, c.dstRef)
	if err := c.sendPacket(ctx, request); err != nil {
		return err
	}
	frame, err := c.recvTPKT(ctx)
	if err != nil {
		return err
	}
	if len(frame) < 7 || frame[5] != cotpCC {
		return s7runtime.NewError(s7runtime.CodeIsoConnect, errors.Errorf("unexpected cotp answer % x", frame))
	}
	return nil
}

func (c *Client) recvError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return s7runtime.NewError(s7runtime.CodeCliJobTimeout, ctx.Err())
	}
	return s7runtime.NewError(s7runtime.CodeIsoRecvPacket|tcpErrorCode(err, s7runtime.CodeTCPReceiveTimeout, s7runtime.CodeTCPDataReceive), err)
}

// tcpErrorCode maps a socket error to its TCP class code.
func tcpErrorCode(err error, timeout, fail uint32) uint32 {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, os.ErrDeadlineExceeded):
		return timeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return s7runtime.CodeTCPConnectionReset
	default:
		return fail
	}
}

func dialError(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return s7runtime.NewError(s7runtime.CodeTCPConnectionTimeout, err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return s7runtime.NewError(s7runtime.CodeTCPUnreachableHost, err)
	default:
		return s7runtime.NewError(s7runtime.CodeTCPConnectionFailed, err)
	}
}
