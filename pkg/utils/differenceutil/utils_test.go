package differenceutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifferenceAndIntersectionStrings(t *testing.T) {
	onlySrc, both, onlyDes := DifferenceAndIntersectionStrings([]string{"b", "a", "c"}, []string{"c", "d", "b"})
	assert.Equal(t, []string{"a"}, onlySrc)
	assert.Equal(t, []string{"b", "c"}, both)
	assert.Equal(t, []string{"d"}, onlyDes)
}

func TestDifferenceAndIntersectionObjects(t *testing.T) {
	type named struct{ Name string }
	src := []*named{{"speed"}, {"temp"}}
	des := []string{"temp", "level"}

	onlySrc, both, onlyDes := DifferenceAndIntersectionObjects(src, des,
		func(v interface{}) string { return v.(*named).Name },
		func(v interface{}) string { return v.(string) })
	assert.Equal(t, []string{"speed"}, onlySrc)
	assert.Equal(t, []string{"temp"}, both)
	assert.Equal(t, []string{"level"}, onlyDes)

	onlySrc, both, onlyDes = DifferenceAndIntersectionObjects(nil, des, nil, func(v interface{}) string { return v.(string) })
	assert.Empty(t, onlySrc)
	assert.Empty(t, both)
	assert.Equal(t, []string{"level", "temp"}, onlyDes)
}
