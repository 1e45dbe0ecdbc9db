package gateway

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"k8s.io/klog/v2"
)

const cpuSampleInterval = 500 * time.Millisecond

func (m *Manager) getGatewayCpu() (*CpuUsageInfo, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		klog.V(3).InfoS("Failed to count cpus", "err", err)
		return nil, err
	}
	percent, err := cpu.Percent(cpuSampleInterval, true)
	if err != nil {
		klog.V(3).InfoS("Failed to sample cpu usage", "err", err)
		return nil, err
	}
	return &CpuUsageInfo{LogicalCores: cores, UsedPercent: percent}, nil
}

func (m *Manager) getGatewayMem() (*MemUsageInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		klog.V(3).InfoS("Failed to read memory usage", "err", err)
		return nil, err
	}
	return &MemUsageInfo{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}, nil
}

func (m *Manager) getGatewayDisk() ([]*DiskUsageInfo, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		klog.V(3).InfoS("Failed to list partitions", "err", err)
		return nil, err
	}
	disks := make([]*DiskUsageInfo, 0, len(partitions))
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			klog.V(4).InfoS("Skipped partition", "mountpoint", p.Mountpoint, "err", err)
			continue
		}
		disks = append(disks, &DiskUsageInfo{
			Path:        usage.Path,
			Fstype:      usage.Fstype,
			Total:       usage.Total,
			Used:        usage.Used,
			UsedPercent: usage.UsedPercent,
		})
	}
	return disks, nil
}
