package s7

import (
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

// coerceInt decodes value weakly into an int64. Pointers are followed, so
// callers may pass either a number, a numeric string or a pointer to one.
func coerceInt(value interface{}) (int64, error) {
	if value == nil {
		return 0, errors.Wrap(s7runtime.ErrCliInvalidParams, "nil value")
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return 0, errors.Wrap(s7runtime.ErrCliInvalidParams, "nil pointer")
		}
		value = rv.Elem().Interface()
	}
	var n int64
	if err := mapstructure.WeakDecode(value, &n); err != nil {
		return 0, errors.Wrapf(s7runtime.ErrCliInvalidValue, "%v", err)
	}
	return n, nil
}

func checkRange(n int64, min, max int64) error {
	if n < min || n > max {
		return errors.Wrapf(s7runtime.ErrCliInvalidValue, "%d out of [%d, %d]", n, min, max)
	}
	return nil
}

func millis(n int64) (time.Duration, error) {
	if err := checkRange(n, 1, math.MaxInt32); err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

// SetParam sets one of the numbered client parameters.
func (c *Client) SetParam(number s7runtime.ParamNumber, value interface{}) error {
	switch number {
	case s7runtime.RemotePort, s7runtime.PingTimeout, s7runtime.SendTimeout, s7runtime.RecvTimeout,
		s7runtime.SrcRef, s7runtime.DstRef, s7runtime.SrcTSap, s7runtime.PDURequest:
	default:
		return errors.Wrapf(s7runtime.ErrCliInvalidParamNumber, "param %d", number)
	}

	n, err := coerceInt(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch number {
	case s7runtime.RemotePort:
		if c.connected.Load() {
			return s7runtime.ErrCliCannotChangeParam
		}
		if err = checkRange(n, 1, math.MaxUint16); err != nil {
			return err
		}
		c.remotePort = int(n)
	case s7runtime.PingTimeout, s7runtime.SendTimeout, s7runtime.RecvTimeout:
		var d time.Duration
		if d, err = millis(n); err != nil {
			return err
		}
		switch number {
		case s7runtime.PingTimeout:
			c.pingTimeout = d
		case s7runtime.SendTimeout:
			c.sendTimeout = d
		default:
			c.recvTimeout = d
		}
	case s7runtime.SrcRef:
		if err = checkRange(n, 0, math.MaxUint16); err == nil {
			c.srcRef = uint16(n)
		}
	case s7runtime.DstRef:
		if err = checkRange(n, 0, math.MaxUint16); err == nil {
			c.dstRef = uint16(n)
		}
	case s7runtime.SrcTSap:
		if err = checkRange(n, 0, math.MaxUint16); err == nil {
			c.localTSAP = uint16(n)
		}
	case s7runtime.PDURequest:
		if err = checkRange(n, 0, math.MaxInt32); err == nil {
			c.pduRequest = clampPDU(int(n))
		}
	}
	return err
}

func clampPDU(n int) int {
	if n < s7runtime.MinPDURequest {
		return s7runtime.MinPDURequest
	}
	if n > s7runtime.MaxPDURequest {
		return s7runtime.MaxPDURequest
	}
	return n
}

// GetParam returns the current value of a numbered parameter. Timeouts are
// reported in milliseconds.
func (c *Client) GetParam(number s7runtime.ParamNumber) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch number {
	case s7runtime.RemotePort:
		return c.remotePort, nil
	case s7runtime.PingTimeout:
		return int(c.pingTimeout / time.Millisecond), nil
	case s7runtime.SendTimeout:
		return int(c.sendTimeout / time.Millisecond), nil
	case s7runtime.RecvTimeout:
		return int(c.recvTimeout / time.Millisecond), nil
	case s7runtime.SrcRef:
		return int(c.srcRef), nil
	case s7runtime.DstRef:
		return int(c.dstRef), nil
	case s7runtime.SrcTSap:
		return int(c.localTSAP), nil
	case s7runtime.PDURequest:
		return c.pduRequest, nil
	default:
		return 0, errors.Wrapf(s7runtime.ErrCliInvalidParamNumber, "param %d", number)
	}
}
