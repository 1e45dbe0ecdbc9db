package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionsValues(t *testing.T) {
	values, names, duplicates := Actions{
		{Name: "speed", Value: 300},
		{Name: "enable", Value: true},
		{Name: "speed", Value: 1},
		{Name: "speed", Value: 2},
	}.Values()

	assert.Equal(t, map[string]interface{}{"speed": 300, "enable": true}, values)
	assert.Equal(t, []string{"speed", "enable"}, names)
	assert.Equal(t, []string{"speed"}, duplicates)

	values, names, duplicates = Actions(nil).Values()
	assert.Empty(t, values)
	assert.Empty(t, names)
	assert.Nil(t, duplicates)
}
