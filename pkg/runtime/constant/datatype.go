package constant

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DataType is the Go representation a variable is decoded to.
type DataType int8

const (
	BOOL DataType = iota
	INT16
	UINT16
	INT32
	INT64
	FLOAT32
	FLOAT64
)

var (
	DataTypeToString = map[DataType]string{
		BOOL:    "bool",
		INT16:   "int16",
		UINT16:  "uint16",
		INT32:   "int32",
		INT64:   "int64",
		FLOAT32: "float32",
		FLOAT64: "float64",
	}
	StringToDataType = make(map[string]DataType, len(DataTypeToString))

	// DataTypeSize is the number of bytes a value takes in PLC memory, a
	// bool is read as the byte holding it.
	DataTypeSize = map[DataType]int{
		BOOL:    1,
		INT16:   2,
		UINT16:  2,
		INT32:   4,
		FLOAT32: 4,
		INT64:   8,
		FLOAT64: 8,
	}
)

func init() {
	for dt, s := range DataTypeToString {
		StringToDataType[s] = dt
	}
}

// DataTypeNames lists the accepted names in order.
func DataTypeNames() []string {
	names := make([]string, 0, len(DataTypeToString))
	for _, s := range DataTypeToString {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

func (dt DataType) String() string {
	if s, ok := DataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int8(dt))
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	s, ok := DataTypeToString[dt]
	if !ok {
		return nil, fmt.Errorf("unknown data type %d", dt)
	}
	return json.Marshal(s)
}

func (dt *DataType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := StringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %q", s)
	}
	*dt = v
	return nil
}
