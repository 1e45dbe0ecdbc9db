package s7

import (
	"context"

	"github.com/pkg/errors"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

const (
	szlCpuStatus      = 0x0424
	szlHeaderSize     = 8
	maxSZLFragments   = 32
	cpuStatusRecordAt = 3
)

const (
	PlcOperationStop      = "stop"
	PlcOperationHotStart  = "hotStart"
	PlcOperationColdStart = "coldStart"
)

// SZL is a system status list as returned by the CPU.
type SZL struct {
	ID       uint16 `json:"id"`
	Index    uint16 `json:"index"`
	LengthDR uint16 `json:"lengthDR"`
	NDR      uint16 `json:"nDR"`
	Data     []byte `json:"data"`
}

// ReadSZL reads the system status list id/index, following the answer
// over as many telegrams as the CPU splits it into.
func (c *Client) ReadSZL(ctx context.Context, id, index uint16) (*SZL, error) {
	var szl *SZL
	err := c.job(ctx, "read szl", func(ctx context.Context) error {
		var err error
		szl, err = c.readSZL(ctx, id, index)
		return err
	})
	return szl, err
}

func (c *Client) readSZL(ctx context.Context, id, index uint16) (*SZL, error) {
	request := newSZLFirstRequest(id, index)
	szl := &SZL{}
	for fragment := 0; ; fragment++ {
		if fragment >= maxSZLFragments {
			return nil, errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "too many szl fragments")
		}
		answer, err := c.exchange(ctx, request)
		if err != nil {
			return nil, err
		}
		if len(answer.Params) < 12 || len(answer.Data) < 4 {
			return nil, errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "szl answer")
		}
		if errNo := binutil.ParseUint16BigEndian(answer.Params[10:]); errNo != 0 {
			return nil, s7runtime.CpuError(errNo)
		}
		if answer.Data[0] != itemReturnOK {
			return nil, s7runtime.CpuError(uint16(answer.Data[0]))
		}

		length := int(binutil.ParseUint16BigEndian(answer.Data[2:]))
		if len(answer.Data) < 4+length {
			return nil, errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "szl answer truncated")
		}
		payload := answer.Data[4 : 4+length]
		if fragment == 0 {
			if len(payload) < szlHeaderSize {
				return nil, errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "szl header")
			}
			szl.ID = binutil.ParseUint16BigEndian(payload[0:])
			szl.Index = binutil.ParseUint16BigEndian(payload[2:])
			szl.LengthDR = binutil.ParseUint16BigEndian(payload[4:])
			szl.NDR = binutil.ParseUint16BigEndian(payload[6:])
			payload = payload[szlHeaderSize:]
		}
		szl.Data = append(szl.Data, payload...)

		if answer.Params[9] == 0x00 {
			return szl, nil
		}
		request = newSZLNextRequest(answer.Params[7])
	}
}

// PlcStatus reads the run mode of the CPU.
func (c *Client) PlcStatus(ctx context.Context) (s7runtime.CpuStatus, error) {
	szl, err := c.ReadSZL(ctx, szlCpuStatus, 0)
	if err != nil {
		return s7runtime.CpuStatusUnknown, err
	}
	if len(szl.Data) <= cpuStatusRecordAt {
		return s7runtime.CpuStatusUnknown, errors.Wrap(s7runtime.ErrCliInvalidPlcAnswer, "cpu status record")
	}
	switch status := s7runtime.CpuStatus(szl.Data[cpuStatusRecordAt]); status {
	case s7runtime.CpuStatusRun, s7runtime.CpuStatusStop:
		return status, nil
	default:
		return s7runtime.CpuStatusUnknown, nil
	}
}

// PlcStop puts the CPU in STOP.
func (c *Client) PlcStop(ctx context.Context) error {
	return c.job(ctx, "plc stop", func(ctx context.Context) error {
		answer, err := c.exchange(ctx, newPlcStop())
		if err != nil {
			return err
		}
		if len(answer.Params) >= 2 && answer.Params[0] == funcStop && answer.Params[1] == 0x07 {
			return s7runtime.ErrCliAlreadyStop
		}
		if answer.headerError() != 0 || len(answer.Params) < 1 || answer.Params[0] != funcStop {
			return s7runtime.NewError(s7runtime.CodeCliCannotStopPLC, s7runtime.CpuError(answer.headerError()))
		}
		return nil
	})
}

// PlcHotStart restarts the CPU keeping retentive data.
func (c *Client) PlcHotStart(ctx context.Context) error {
	return c.plcStart(ctx, "plc hot start", newPlcHotStart())
}

// PlcColdStart restarts the CPU resetting its data.
func (c *Client) PlcColdStart(ctx context.Context) error {
	return c.plcStart(ctx, "plc cold start", newPlcColdStart())
}

func (c *Client) plcStart(ctx context.Context, name string, request []byte) error {
	return c.job(ctx, name, func(ctx context.Context) error {
		answer, err := c.exchange(ctx, request)
		if err != nil {
			return err
		}
		if len(answer.Params) >= 2 && answer.Params[0] == funcStart {
			switch answer.Params[1] {
			case 0x03:
				return s7runtime.ErrCliAlreadyRun
			case 0x02:
				return s7runtime.ErrCliCannotStartPLC
			}
		}
		if answer.headerError() != 0 || len(answer.Params) < 1 || answer.Params[0] != funcStart {
			return s7runtime.NewError(s7runtime.CodeCliCannotStartPLC, s7runtime.CpuError(answer.headerError()))
		}
		return nil
	})
}
