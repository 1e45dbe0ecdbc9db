package options

import (
	"net"
	"strconv"

	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime/constant"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	var allErrs field.ErrorList
	if port, err := strconv.Atoi(o.Port); err != nil {
		allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, err.Error()))
	} else {
		for _, msg := range validation.IsValidPortNum(port) {
			allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, msg))
		}
	}
	if len(o.DataDir) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("dataDir"), ""))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		allErrs = append(allErrs, field.Invalid(field.NewPath("certFile"), o.CertFile, "certFile and keyFile must be given together"))
	}
	if o.Wait <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("graceful-timeout"), o.Wait.String(), "must be positive"))
	}
	for _, err := range allErrs {
		errs = append(errs, err)
	}
	return errs
}

func ValidateClient(o *ClientOptions) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	var allErrs field.ErrorList
	if len(o.Address) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("address"), ""))
	} else if net.ParseIP(o.Address) == nil {
		for _, msg := range validation.IsDNS1123Subdomain(o.Address) {
			allErrs = append(allErrs, field.Invalid(field.NewPath("address"), o.Address, msg))
		}
	}
	for _, msg := range validation.IsValidPortNum(o.Port) {
		allErrs = append(allErrs, field.Invalid(field.NewPath("s7-port"), o.Port, msg))
	}
	if o.Rack < 0 || o.Rack > 7 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("rack"), o.Rack, "must be between 0 and 7"))
	}
	if o.Slot < 0 || o.Slot > 31 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("slot"), o.Slot, "must be between 0 and 31"))
	}
	if _, ok := s7runtime.StringToConnectionType[o.ConnectionType]; !ok {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("connection-type"), o.ConnectionType, []string{"pg", "op", "basic"}))
	}
	if o.PDURequest < 240 || o.PDURequest > 960 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("pdu"), o.PDURequest, "must be between 240 and 960"))
	}
	if o.Timeout <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("timeout"), o.Timeout.String(), "must be positive"))
	}
	if _, ok := constant.StringToDataType[o.DataType]; !ok {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("type"), o.DataType, constant.DataTypeNames()))
	}
	if o.Output != "yaml" && o.Output != "json" {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("output"), o.Output, []string{"yaml", "json"}))
	}
	for _, err := range allErrs {
		errs = append(errs, err)
	}
	return errs
}
