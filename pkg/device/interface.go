package device

import (
	"context"

	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	v1 "harnss7/pkg/v1"
)

// DeviceManager turns api objects of one device type into runtime devices.
type DeviceManager interface {
	CreateDevice(deviceType v1.DeviceType) (runtime.Device, error)
	DeleteDevice(device runtime.Device) (runtime.Device, error)
	UpdateValidation(deviceType v1.DeviceType, device runtime.Device) error
	UpdateDevice(id string, deviceType v1.DeviceType, device runtime.Device) (runtime.Device, error)
}

// PlcOperator is a broker that can also reach the CPU itself.
type PlcOperator interface {
	PlcStatus(ctx context.Context) (s7runtime.CpuStatus, error)
	PlcControl(ctx context.Context, operation string) error
	ReadSZL(ctx context.Context, id, index uint16) (*s7.SZL, error)
}

var _ PlcOperator = (*s7.S7Collector)(nil)
