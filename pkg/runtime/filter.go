package runtime

import (
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
)

type lessTypeFunc func(d1, d2 Device) bool

type typeSorter struct {
	ds        []Device
	lessFuncs []lessTypeFunc
}

func ByDevice(less ...lessTypeFunc) *typeSorter {
	return &typeSorter{
		lessFuncs: less,
	}
}
func (ms *typeSorter) Sort(ds []Device) {
	ms.ds = ds
	sort.Sort(ms)
}

func (ms *typeSorter) Len() int {
	return len(ms.ds)
}

func (ms *typeSorter) Swap(i, j int) {
	ms.ds[i], ms.ds[j] = ms.ds[j], ms.ds[i]
}

func (ms *typeSorter) Less(i, j int) bool {
	return ms.less(ms.ds[i], ms.ds[j])
}

func (ms *typeSorter) less(p, q Device) bool {
	// Try all but the last comparison.
	var k int
	for k = 0; k < len(ms.lessFuncs)-1; k++ {
		less := ms.lessFuncs[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return ms.lessFuncs[k](p, q)
}

func (ms *typeSorter) Insert(ds []Device, d Device) []Device {
	i := sort.Search(len(ds), func(i int) bool { return ms.less(d, ds[i]) })
	ds = append(ds, d)
	copy(ds[i+1:], ds[i:])
	ds[i] = d
	return ds
}

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

type DeviceFilter struct {
	Name          interface{}
	Id            string
	DeviceCode    string
	DeviceType    string
	DeviceModel   string
	CollectStatus string
}

type predicateType func(d Device) bool

func equalTo(want string, get func(d Device) string) predicateType {
	return func(d Device) bool { return get(d) == want }
}

// ParseTypeFilter turns a filter into predicates a device has to satisfy all of.
// Name is either a plain string or a NameFilterFunc shaped map.
func ParseTypeFilter(filter *DeviceFilter) []predicateType {
	predicates := make([]predicateType, 0)
	if filter == nil {
		return predicates
	}

	if len(filter.Id) > 0 {
		predicates = append(predicates, equalTo(filter.Id, Device.GetID))
	}
	if len(filter.DeviceCode) > 0 {
		predicates = append(predicates, equalTo(filter.DeviceCode, Device.GetDeviceCode))
	}
	if len(filter.DeviceType) > 0 {
		predicates = append(predicates, equalTo(filter.DeviceType, Device.GetDeviceType))
	}
	if len(filter.DeviceModel) > 0 {
		predicates = append(predicates, equalTo(filter.DeviceModel, Device.GetDeviceModel))
	}
	if len(filter.CollectStatus) > 0 {
		predicates = append(predicates, equalTo(filter.CollectStatus, Device.GetCollectStatus))
	}

	if filter.Name == nil {
		return predicates
	}
	if name, ok := filter.Name.(string); ok {
		return append(predicates, equalTo(name, Device.GetName))
	}

	var ff NameFilterFunc
	if err := mapstructure.Decode(filter.Name, &ff); err != nil {
		klog.V(3).InfoS("Failed to parse filter.name", "err", err)
		return predicates
	}
	if len(ff.Eq) > 0 {
		predicates = append(predicates, equalTo(ff.Eq, Device.GetName))
	}
	if len(ff.In) > 0 {
		predicates = append(predicates, func(d Device) bool {
			for _, name := range ff.In {
				if name == d.GetName() {
					return true
				}
			}
			return false
		})
	}
	if len(ff.Contains) > 0 {
		predicates = append(predicates, func(d Device) bool {
			return strings.Contains(d.GetName(), ff.Contains)
		})
	}
	if len(ff.StartsWith) > 0 {
		prefix := strings.TrimSpace(ff.StartsWith)
		predicates = append(predicates, func(d Device) bool {
			return strings.HasPrefix(d.GetName(), prefix)
		})
	}
	if len(ff.EndsWith) > 0 {
		suffix := strings.TrimSpace(ff.EndsWith)
		predicates = append(predicates, func(d Device) bool {
			return strings.HasSuffix(d.GetName(), suffix)
		})
	}
	return predicates
}
