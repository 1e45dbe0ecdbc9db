package constant

import (
	"encoding/json"
	"fmt"
)

// AccessMode tells whether a variable may be written through an action.
type AccessMode int8

const (
	AccessModeReadOnly AccessMode = iota
	AccessModeReadWrite
)

var (
	ReadWritePropertyToString = map[AccessMode]string{
		AccessModeReadOnly:  "r",
		AccessModeReadWrite: "rw",
	}
	StringToReadWriteProperty = map[string]AccessMode{
		"r":  AccessModeReadOnly,
		"rw": AccessModeReadWrite,
	}
)

func (am AccessMode) MarshalJSON() ([]byte, error) {
	s, ok := ReadWritePropertyToString[am]
	if !ok {
		return nil, fmt.Errorf("unknown access mode %d", am)
	}
	return json.Marshal(s)
}

func (am *AccessMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	// an empty mode is read only
	if len(s) == 0 {
		*am = AccessModeReadOnly
		return nil
	}
	v, ok := StringToReadWriteProperty[s]
	if !ok {
		return fmt.Errorf("unknown access mode %q", s)
	}
	*am = v
	return nil
}
