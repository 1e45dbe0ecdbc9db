package runtime

import (
	"strings"
	"unicode/utf8"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// MaxNameLength bounds device and variable names, both end up in URL paths and MQTT topics.
const MaxNameLength = 64

const nameForbiddenChars = `/\`

// ValidateName checks a device or variable name found at fldPath.
func ValidateName(name string, fldPath *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	switch {
	case len(name) == 0:
		allErrs = append(allErrs, field.Required(fldPath, ""))
	case utf8.RuneCountInString(name) > MaxNameLength:
		allErrs = append(allErrs, field.TooLong(fldPath, name, MaxNameLength))
	case strings.ContainsAny(name, nameForbiddenChars):
		allErrs = append(allErrs, field.Invalid(fldPath, name, "must not contain '/' or '\\'"))
	}
	return allErrs
}
