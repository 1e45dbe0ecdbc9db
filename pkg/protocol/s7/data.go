package s7

import (
	"context"

	"github.com/pkg/errors"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

func validArea(area s7runtime.S7StoreArea) bool {
	_, ok := s7runtime.StoreAddressToString[area]
	return ok
}

// wireItem is the form of item put on the wire: everything but bits,
// counters and timers travels as bytes.
func wireItem(item *s7runtime.DataItem) (*s7runtime.DataItem, error) {
	if item == nil {
		return nil, errors.Wrap(s7runtime.ErrCliInvalidParams, "nil item")
	}
	if !validArea(item.Area) {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidParams, "area 0x%02x", uint8(item.Area))
	}
	if item.WordLen.Size() == 0 {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidWordLen, "word length 0x%02x", uint8(item.WordLen))
	}
	if item.Amount <= 0 {
		return nil, errors.Wrapf(s7runtime.ErrCliInvalidParams, "amount %d", item.Amount)
	}
	w := *item
	switch item.WordLen {
	case s7runtime.WLBit:
		w.Amount = 1
	case s7runtime.WLCounter, s7runtime.WLTimer:
	default:
		w.Amount = item.Size()
		w.WordLen = s7runtime.WLByte
	}
	if len(w.Data) < w.Size() {
		return nil, errors.Wrapf(s7runtime.ErrCliBufferTooSmall, "%d bytes for %d", len(w.Data), w.Size())
	}
	return &w, nil
}

// ReadArea reads amount elements of wordLen from area into buf. Transfers
// larger than the negotiated PDU are split into several telegrams.
// For WLBit start is a bit address (byte*8+bit) and exactly one bit is read.
func (c *Client) ReadArea(ctx context.Context, area s7runtime.S7StoreArea, dbNumber, start, amount int, wordLen s7runtime.WordLen, buf []byte) error {
	item, err := wireItem(&s7runtime.DataItem{Area: area, DBNumber: dbNumber, Start: start, Amount: amount, WordLen: wordLen, Data: buf})
	if err != nil {
		return err
	}
	return c.job(ctx, "read area", func(ctx context.Context) error {
		return c.transferArea(ctx, item, readOverhead, c.readItems)
	})
}

// WriteArea writes amount elements of wordLen from buf to area.
func (c *Client) WriteArea(ctx context.Context, area s7runtime.S7StoreArea, dbNumber, start, amount int, wordLen s7runtime.WordLen, buf []byte) error {
	item, err := wireItem(&s7runtime.DataItem{Area: area, DBNumber: dbNumber, Start: start, Amount: amount, WordLen: wordLen, Data: buf})
	if err != nil {
		return err
	}
	return c.job(ctx, "write area", func(ctx context.Context) error {
		return c.transferArea(ctx, item, writeOverhead, c.writeItems)
	})
}

func (c *Client) transferArea(ctx context.Context, item *s7runtime.DataItem, overhead int,
	transfer func(ctx context.Context, items []*s7runtime.DataItem) error) error {
	if !c.connected.Load() {
		return s7runtime.ErrTCPNotConnected
	}
	wordSize := item.WordLen.Size()
	maxElements := (c.PDULength() - overhead) / wordSize
	if maxElements <= 0 {
		return s7runtime.ErrCliSizeOverPDU
	}

	for done := 0; done < item.Amount; {
		n := item.Amount - done
		if n > maxElements {
			n = maxElements
		}
		chunk := &s7runtime.DataItem{
			Area:     item.Area,
			WordLen:  item.WordLen,
			DBNumber: item.DBNumber,
			Start:    item.Start + done,
			Amount:   n,
			Data:     item.Data[done*wordSize : (done+n)*wordSize],
		}
		if err := transfer(ctx, []*s7runtime.DataItem{chunk}); err != nil {
			return err
		}
		if chunk.Err != nil {
			return chunk.Err
		}
		done += n
	}
	return nil
}

func (c *Client) readItems(ctx context.Context, items []*s7runtime.DataItem) error {
	answer, err := c.exchange(ctx, newReadVarRequest(items))
	if err != nil {
		return err
	}
	if code := answer.headerError(); code != 0 {
		return s7runtime.CpuError(code)
	}
	return parseReadVarResponse(answer, items)
}

func (c *Client) writeItems(ctx context.Context, items []*s7runtime.DataItem) error {
	answer, err := c.exchange(ctx, newWriteVarRequest(items))
	if err != nil {
		return err
	}
	if code := answer.headerError(); code != 0 {
		return s7runtime.CpuError(code)
	}
	return parseWriteVarResponse(answer, items)
}

func wireItems(items []*s7runtime.DataItem) ([]*s7runtime.DataItem, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(s7runtime.ErrCliInvalidParams, "no items")
	}
	if len(items) > s7runtime.MaxVars {
		return nil, errors.Wrapf(s7runtime.ErrCliTooManyItems, "%d items", len(items))
	}
	wire := make([]*s7runtime.DataItem, len(items))
	for i, item := range items {
		w, err := wireItem(item)
		if err != nil {
			return nil, err
		}
		wire[i] = w
	}
	return wire, nil
}

// ReadMultiVars reads up to 20 items in one telegram. The job error is the
// telegram error; each item carries its own result in Err.
func (c *Client) ReadMultiVars(ctx context.Context, items []*s7runtime.DataItem) error {
	wire, err := wireItems(items)
	if err != nil {
		return err
	}
	return c.job(ctx, "read multi vars", func(ctx context.Context) error {
		pdu := c.PDULength()
		if readRequestSize(wire) > pdu || readResponseSize(wire) > pdu {
			return s7runtime.ErrCliSizeOverPDU
		}
		err := c.readItems(ctx, wire)
		for i, w := range wire {
			items[i].Err = w.Err
			if err != nil && items[i].Err == nil {
				items[i].Err = err
			}
		}
		return err
	})
}

// WriteMultiVars writes up to 20 items in one telegram.
func (c *Client) WriteMultiVars(ctx context.Context, items []*s7runtime.DataItem) error {
	wire, err := wireItems(items)
	if err != nil {
		return err
	}
	return c.job(ctx, "write multi vars", func(ctx context.Context) error {
		if writeRequestSize(wire) > c.PDULength() {
			return s7runtime.ErrCliSizeOverPDU
		}
		err := c.writeItems(ctx, wire)
		for i, w := range wire {
			items[i].Err = w.Err
			if err != nil && items[i].Err == nil {
				items[i].Err = err
			}
		}
		return err
	})
}

func (c *Client) DBRead(ctx context.Context, dbNumber, start, size int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.DB, dbNumber, start, size, s7runtime.WLByte, buf)
}

func (c *Client) DBWrite(ctx context.Context, dbNumber, start, size int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.DB, dbNumber, start, size, s7runtime.WLByte, buf)
}

// MBRead reads merkers.
func (c *Client) MBRead(ctx context.Context, start, size int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.M, 0, start, size, s7runtime.WLByte, buf)
}

func (c *Client) MBWrite(ctx context.Context, start, size int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.M, 0, start, size, s7runtime.WLByte, buf)
}

// EBRead reads process inputs.
func (c *Client) EBRead(ctx context.Context, start, size int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.I, 0, start, size, s7runtime.WLByte, buf)
}

func (c *Client) EBWrite(ctx context.Context, start, size int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.I, 0, start, size, s7runtime.WLByte, buf)
}

// ABRead reads process outputs.
func (c *Client) ABRead(ctx context.Context, start, size int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.Q, 0, start, size, s7runtime.WLByte, buf)
}

func (c *Client) ABWrite(ctx context.Context, start, size int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.Q, 0, start, size, s7runtime.WLByte, buf)
}

// TMRead reads amount timers, two bytes each.
func (c *Client) TMRead(ctx context.Context, start, amount int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.T, 0, start, amount, s7runtime.WLTimer, buf)
}

func (c *Client) TMWrite(ctx context.Context, start, amount int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.T, 0, start, amount, s7runtime.WLTimer, buf)
}

// CTRead reads amount counters, two bytes each.
func (c *Client) CTRead(ctx context.Context, start, amount int, buf []byte) error {
	return c.ReadArea(ctx, s7runtime.C, 0, start, amount, s7runtime.WLCounter, buf)
}

func (c *Client) CTWrite(ctx context.Context, start, amount int, buf []byte) error {
	return c.WriteArea(ctx, s7runtime.C, 0, start, amount, s7runtime.WLCounter, buf)
}
