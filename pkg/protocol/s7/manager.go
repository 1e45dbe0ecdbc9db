package s7

import (
	"strconv"
	"time"

	"harnss7/pkg/protocol/s7/model"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	"harnss7/pkg/runtime/constant"
	"harnss7/pkg/utils/differenceutil"
	"harnss7/pkg/utils/randutil"
	"harnss7/pkg/utils/uuidutil"
	v1 "harnss7/pkg/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
)

type S7DeviceManager struct {
}

func toRuntimeAddress(address *v1.S7Address) *s7runtime.S7Address {
	if address == nil {
		return nil
	}
	a := &s7runtime.S7Address{Location: address.Location, Option: &s7runtime.S7AddressOption{}}
	if o := address.Option; o != nil {
		a.Option = &s7runtime.S7AddressOption{
			Port:           o.Port,
			Rack:           o.Rack,
			Slot:           o.Slot,
			ConnectionType: o.ConnectionType,
			LocalTSAP:      o.LocalTSAP,
			RemoteTSAP:     o.RemoteTSAP,
			PDURequest:     o.PDURequest,
			Timeout:        o.Timeout,
		}
	}
	return a
}

func toRuntimeVariables(variables []*v1.S7Variable) []*s7runtime.Variable {
	vs := make([]*s7runtime.Variable, 0, len(variables))
	for _, variable := range variables {
		accessMode := constant.AccessModeReadOnly
		if mode, ok := constant.StringToReadWriteProperty[variable.AccessMode]; ok {
			accessMode = mode
		}
		vs = append(vs, &s7runtime.Variable{
			DataType:     constant.StringToDataType[variable.DataType],
			Name:         variable.Name,
			Address:      variable.Address,
			Rate:         variable.Rate,
			DefaultValue: variable.DefaultValue,
			AccessMode:   accessMode,
		})
	}
	return vs
}

// validate checks what binding tags cannot: the names, the model, the
// addressing and every variable address.
func validate(s7Device *v1.S7Device) error {
	var allErrs field.ErrorList
	allErrs = append(allErrs, runtime.ValidateName(s7Device.Name, field.NewPath("name"))...)

	modeler, ok := model.S7Modelers[s7Device.DeviceModel]
	if !ok {
		supported := make([]string, 0, len(model.S7Modelers))
		for name := range model.S7Modelers {
			supported = append(supported, name)
		}
		allErrs = append(allErrs, field.NotSupported(field.NewPath("deviceModel"), s7Device.DeviceModel, supported))
	}

	address := toRuntimeAddress(s7Device.Address)
	if address == nil || len(address.Location) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("address", "location"), ""))
	} else if modeler != nil {
		if _, _, err := modeler.TSAP(address.Option); err != nil {
			allErrs = append(allErrs, field.Invalid(field.NewPath("address", "option"), address.Option, err.Error()))
		}
	}

	names := make(map[string]struct{}, len(s7Device.Variables))
	for i, variable := range s7Device.Variables {
		path := field.NewPath("variables").Index(i)
		allErrs = append(allErrs, runtime.ValidateName(variable.Name, path.Child("name"))...)
		if _, exist := names[variable.Name]; exist {
			allErrs = append(allErrs, field.Duplicate(path.Child("name"), variable.Name))
		}
		names[variable.Name] = struct{}{}

		dt, ok := constant.StringToDataType[variable.DataType]
		if !ok {
			allErrs = append(allErrs, field.NotSupported(path.Child("dataType"), variable.DataType, constant.DataTypeNames()))
			continue
		}
		v := &s7runtime.Variable{Name: variable.Name, Address: variable.Address, DataType: dt}
		if _, err := v.Parse(); err != nil {
			allErrs = append(allErrs, field.Invalid(path.Child("address"), variable.Address, err.Error()))
		}
	}
	return allErrs.ToAggregate()
}

func (m *S7DeviceManager) CreateDevice(deviceType v1.DeviceType) (runtime.Device, error) {
	s7Device, ok := deviceType.(*v1.S7Device)
	if !ok {
		klog.V(2).InfoS("Unsupported device, type not S7")
		return nil, constant.ErrDeviceType
	}
	if err := validate(s7Device); err != nil {
		return nil, err
	}

	d := &s7runtime.S7Device{
		DeviceMeta: runtime.DeviceMeta{
			PublishMeta: runtime.PublishMeta{Topic: s7Device.Topic},
			ObjectMeta: runtime.ObjectMeta{
				Name:    s7Device.Name,
				ID:      uuidutil.UUID(),
				Version: strconv.FormatUint(randutil.Uint64n(), 10),
				ModTime: time.Now(),
			},
			DeviceCode:    s7Device.DeviceCode,
			DeviceType:    s7Device.DeviceType,
			DeviceModel:   s7Device.DeviceModel,
			CollectStatus: runtime.CollectStatusToString[runtime.Stopped],
		},
		CollectorCycle: s7Device.CollectorCycle,
		Address:        toRuntimeAddress(s7Device.Address),
		Variables:      toRuntimeVariables(s7Device.Variables),
	}
	d.IndexDevice()
	return d, nil
}

func (m *S7DeviceManager) DeleteDevice(device runtime.Device) (runtime.Device, error) {
	return &s7runtime.S7Device{DeviceMeta: runtime.DeviceMeta{
		ObjectMeta:  runtime.ObjectMeta{ID: device.GetID(), Version: device.GetVersion()},
		DeviceType:  device.GetDeviceType(),
		DeviceCode:  device.GetDeviceCode(),
		DeviceModel: device.GetDeviceModel(),
	}}, nil
}

func (m *S7DeviceManager) UpdateValidation(deviceType v1.DeviceType, device runtime.Device) error {
	s7Device, ok := deviceType.(*v1.S7Device)
	if !ok {
		return constant.ErrDeviceType
	}
	if s7Device.DeviceType != device.GetDeviceType() {
		return utilerrors.NewAggregate([]error{field.Forbidden(field.NewPath("deviceType"), "device type is immutable")})
	}
	return validate(s7Device)
}

// UpdateDevice replaces the definition of device, keeping its id and version.
func (m *S7DeviceManager) UpdateDevice(id string, deviceType v1.DeviceType, device runtime.Device) (runtime.Device, error) {
	s7Device, ok := deviceType.(*v1.S7Device)
	if !ok {
		return nil, constant.ErrDeviceType
	}
	old, ok := device.(*s7runtime.S7Device)
	if !ok {
		return nil, constant.ErrDeviceType
	}

	removed, _, added := differenceutil.DifferenceAndIntersectionObjects(old.Variables, s7Device.Variables,
		func(v interface{}) string { return v.(*s7runtime.Variable).Name },
		func(v interface{}) string { return v.(*v1.S7Variable).Name })
	klog.V(3).InfoS("Update s7 device", "deviceId", id, "removedVariables", removed, "addedVariables", added)

	old.ID = id
	old.Name = s7Device.Name
	old.Topic = s7Device.Topic
	old.DeviceCode = s7Device.DeviceCode
	old.DeviceModel = s7Device.DeviceModel
	old.CollectorCycle = s7Device.CollectorCycle
	old.Address = toRuntimeAddress(s7Device.Address)
	old.Variables = toRuntimeVariables(s7Device.Variables)
	old.ModTime = time.Now()
	old.IndexDevice()
	return old, nil
}
