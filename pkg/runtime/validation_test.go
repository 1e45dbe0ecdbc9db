package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

func TestValidateName(t *testing.T) {
	path := field.NewPath("variables").Index(0).Child("name")

	assert.Empty(t, ValidateName("speed", path))
	assert.Empty(t, ValidateName("Drehzahl Motor 1", path))
	assert.Empty(t, ValidateName(strings.Repeat("ü", MaxNameLength), path))

	cases := map[string]field.ErrorType{
		"":                                   field.ErrorTypeRequired,
		strings.Repeat("a", MaxNameLength+1): field.ErrorTypeTooLong,
		"line1/speed":                        field.ErrorTypeInvalid,
		`line1\speed`:                        field.ErrorTypeInvalid,
	}
	for name, want := range cases {
		errs := ValidateName(name, path)
		require.Len(t, errs, 1, name)
		assert.Equal(t, want, errs[0].Type, name)
		assert.Equal(t, "variables[0].name", errs[0].Field, name)
	}
}
