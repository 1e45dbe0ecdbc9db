package gateway

import "harnss7/pkg/runtime"

// GatewayMeta identifies this process, its id is part of every default
// publish topic.
type GatewayMeta struct {
	Secret string `json:"secret"`
	runtime.ObjectMeta
}

type ResponseModel struct {
	Cpus  interface{} `json:"cpus,omitempty"`
	Mem   interface{} `json:"mem,omitempty"`
	Disks interface{} `json:"disk,omitempty"`
}

type CpuUsageInfo struct {
	LogicalCores int       `json:"logicalCores"`
	UsedPercent  []float64 `json:"usedPercent"`
}

type MemUsageInfo struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

type DiskUsageInfo struct {
	Path        string  `json:"path"`
	Fstype      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

const (
	gatewayKey  = "meta"
	gatewayName = "harnss7"
)
