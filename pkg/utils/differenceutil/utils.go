package differenceutil

import (
	"reflect"

	"k8s.io/apimachinery/pkg/util/sets"
)

type getKeyFunc func(value interface{}) string

// DifferenceAndIntersectionStrings returns the sorted keys only in src, in
// both and only in des.
func DifferenceAndIntersectionStrings(src, des []string) (onlySrc, intersection, onlyDes []string) {
	s, d := sets.NewString(src...), sets.NewString(des...)
	return s.Difference(d).List(), s.Intersection(d).List(), d.Difference(s).List()
}

// DifferenceAndIntersectionObjects compares two slices by the keys getSrcKey
// and getDesKey pick out of their elements.
func DifferenceAndIntersectionObjects(src, des interface{}, getSrcKey, getDesKey getKeyFunc) (onlySrc, intersection, onlyDes []string) {
	return DifferenceAndIntersectionStrings(keys(src, getSrcKey), keys(des, getDesKey))
}

func keys(slice interface{}, get getKeyFunc) []string {
	v := reflect.ValueOf(slice)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil
	}
	ks := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		ks = append(ks, get(v.Index(i).Interface()))
	}
	return ks
}
