package runtime

import (
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"harnss7/pkg/runtime"
	"harnss7/pkg/runtime/constant"
	"harnss7/pkg/utils/binutil"
)

var _ runtime.VariableValue = (*Variable)(nil)

type Variable struct {
	DataType     constant.DataType   `json:"dataType"`
	Name         string              `json:"name"`
	Address      string              `json:"address"`
	Rate         float64             `json:"rate,omitempty"` // applied on read, divided out on write
	DefaultValue interface{}         `json:"defaultValue,omitempty"`
	AccessMode   constant.AccessMode `json:"accessMode"`
	Value        interface{}         `json:"value,omitempty"`
}

// VariableAddress is a parsed variable address.
type VariableAddress struct {
	Area     S7StoreArea
	DBNumber int
	Start    int // byte offset, or the timer/counter number
	Bit      int
	Size     byte // X B W D, 0 when implied by the data type
}

// ParseVariableAddress accepts the usual Step7 spellings:
//
//	DB1.DBX0.5  DB1.DBW2  DB1.DBD24  DB1.X0.5  DB1.2
//	M10.1  MB3  IW4  QD8  E0.0  A1.2
//	T5  C3  Z3
func ParseVariableAddress(address string) (*VariableAddress, error) {
	s := strings.ToUpper(strings.TrimSpace(address))
	if len(s) < 2 {
		return nil, errors.Wrapf(ErrVariableAddress, "address %q", address)
	}
	va := &VariableAddress{}

	switch {
	case strings.HasPrefix(s, "DB"):
		index := strings.Index(s, ".")
		if index == -1 {
			return nil, errors.Wrapf(ErrVariableAddress, "address %q has no offset", address)
		}
		db, err := strconv.Atoi(s[2:index])
		if err != nil || db < 0 || db > math.MaxUint16 {
			return nil, errors.Wrapf(ErrVariableAddress, "address %q has a bad block number", address)
		}
		va.Area = DB
		va.DBNumber = db
		s = strings.TrimPrefix(s[index+1:], "DB")
	case s[0] == 'T' || s[0] == 'C' || s[0] == 'Z':
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 || n > math.MaxUint16 {
			return nil, errors.Wrapf(ErrVariableAddress, "address %q", address)
		}
		va.Area = StringToStoreAddress[s[:1]]
		va.Start = n
		return va, nil
	default:
		area, ok := StringToStoreAddress[s[:1]]
		if !ok || area == DB {
			return nil, errors.Wrapf(ErrVariableAddress, "address %q has an unknown area", address)
		}
		va.Area = area
		s = s[1:]
	}

	if len(s) > 0 && strings.IndexByte("XBWD", s[0]) != -1 {
		va.Size = s[0]
		s = s[1:]
	}

	byteAddress, bitAddress, hasBit := strings.Cut(s, ".")
	start, err := strconv.Atoi(byteAddress)
	if err != nil || start < 0 || start > 0xffff {
		return nil, errors.Wrapf(ErrVariableAddress, "address %q has a bad byte offset", address)
	}
	va.Start = start
	if hasBit {
		bit, err := strconv.Atoi(bitAddress)
		if err != nil || bit < 0 || bit > 7 {
			return nil, errors.Wrapf(ErrVariableAddress, "address %q has a bad bit offset", address)
		}
		va.Bit = bit
	} else if va.Size == 'X' {
		return nil, errors.Wrapf(ErrVariableAddress, "address %q needs a bit offset", address)
	}
	return va, nil
}

func (va *VariableAddress) String() string {
	switch va.Area {
	case DB:
		return "DB" + strconv.Itoa(va.DBNumber) + "." + strconv.Itoa(va.Start) + "." + strconv.Itoa(va.Bit)
	case T, C:
		return StoreAddressToString[va.Area] + strconv.Itoa(va.Start)
	default:
		return StoreAddressToString[va.Area] + strconv.Itoa(va.Start) + "." + strconv.Itoa(va.Bit)
	}
}

// Key identifies the bytes read for a variable, bools of the same byte share it.
func (va *VariableAddress) Key(size int) string {
	return StoreAddressToString[va.Area] + "." + strconv.Itoa(va.DBNumber) + "." + strconv.Itoa(va.Start) + "." + strconv.Itoa(size)
}

// DataSize is the number of bytes holding the variable on the PLC.
func (v *Variable) DataSize() int {
	if size, ok := constant.DataTypeSize[v.DataType]; ok {
		return size
	}
	return 1
}

func (v *Variable) Parse() (*VariableAddress, error) {
	va, err := ParseVariableAddress(v.Address)
	if err != nil {
		return nil, err
	}
	switch va.Area {
	case T, C:
		if v.DataSize() != 2 {
			return nil, errors.Wrapf(ErrVariableAddress, "variable %s: timers and counters are 16 bit", v.Name)
		}
	}
	switch va.Size {
	case 'X':
		if v.DataType != constant.BOOL {
			return nil, errors.Wrapf(ErrVariableAddress, "variable %s: bit address for %s", v.Name, constant.DataTypeToString[v.DataType])
		}
	case 'B':
		if v.DataSize() > 1 {
			return nil, errors.Wrapf(ErrVariableAddress, "variable %s: byte address for %s", v.Name, constant.DataTypeToString[v.DataType])
		}
	case 'W':
		if v.DataSize() > 2 {
			return nil, errors.Wrapf(ErrVariableAddress, "variable %s: word address for %s", v.Name, constant.DataTypeToString[v.DataType])
		}
	case 'D':
		if v.DataSize() > 4 {
			return nil, errors.Wrapf(ErrVariableAddress, "variable %s: double word address for %s", v.Name, constant.DataTypeToString[v.DataType])
		}
	}
	return va, nil
}

// ReadItem builds the item reading the variable. Bools are read as a whole byte.
func (v *Variable) ReadItem(va *VariableAddress) *DataItem {
	item := &DataItem{
		Area:     va.Area,
		DBNumber: va.DBNumber,
		Start:    va.Start,
		Amount:   v.DataSize(),
		WordLen:  WLByte,
	}
	switch va.Area {
	case T:
		item.WordLen, item.Amount = WLTimer, 1
	case C:
		item.WordLen, item.Amount = WLCounter, 1
	}
	item.Data = make([]byte, v.DataSize())
	return item
}

// WriteItem builds the item writing value to the variable. Bools are written
// as a single bit so neighbouring bits are left alone.
func (v *Variable) WriteItem(va *VariableAddress, value interface{}) (*DataItem, error) {
	data, err := v.Encode(value)
	if err != nil {
		return nil, err
	}
	item := v.ReadItem(va)
	item.Data = data
	if v.DataType == constant.BOOL && va.Area != T && va.Area != C {
		item.WordLen = WLBit
		item.Start = va.Start*8 + va.Bit
		item.Amount = 1
	}
	return item, nil
}

func (v *Variable) scaled() bool {
	return v.Rate != 0 && v.Rate != 1
}

// Decode decodes the raw bytes of the variable, applying the rate.
func (v *Variable) Decode(data []byte, bit int) (interface{}, error) {
	if len(data) < v.DataSize() {
		return nil, errors.Wrapf(ErrCliInvalidDataSizeRecv, "variable %s wants %d bytes, got %d", v.Name, v.DataSize(), len(data))
	}

	var raw float64
	var value interface{}
	switch v.DataType {
	case constant.BOOL:
		return data[0]&(1<<uint(bit)) != 0, nil
	case constant.UINT16:
		u := binutil.ParseUint16BigEndian(data)
		raw, value = float64(u), u
	case constant.INT16:
		i := int16(binutil.ParseUint16BigEndian(data))
		raw, value = float64(i), i
	case constant.INT32:
		i := int32(binutil.ParseUint32BigEndian(data))
		raw, value = float64(i), i
	case constant.FLOAT32:
		f := binutil.ParseFloat32BigEndian(data)
		raw, value = float64(f), f
	case constant.INT64:
		i := int64(binutil.ParseUint64BigEndian(data))
		raw, value = float64(i), i
	case constant.FLOAT64:
		f := binutil.ParseFloat64BigEndian(data)
		raw, value = f, f
	default:
		return nil, errors.Errorf("variable %s has unsupported data type %d", v.Name, v.DataType)
	}
	if v.scaled() {
		return raw * v.Rate, nil
	}
	return value, nil
}

// Encode encodes value for the variable. Strings and numbers of any kind are
// accepted, scaled values are divided by the rate before encoding.
func (v *Variable) Encode(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, errors.Wrapf(ErrCliInvalidValue, "variable %s: nil value", v.Name)
	}

	if v.DataType == constant.BOOL {
		var b bool
		if err := mapstructure.WeakDecode(value, &b); err != nil {
			return nil, NewError(CodeCliInvalidValue, errors.Wrapf(err, "variable %s", v.Name))
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil
	}

	var f float64
	if err := mapstructure.WeakDecode(value, &f); err != nil {
		return nil, NewError(CodeCliInvalidValue, errors.Wrapf(err, "variable %s", v.Name))
	}
	if v.scaled() {
		f = f / v.Rate
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Wrapf(ErrCliInvalidValue, "variable %s: %v", v.Name, value)
	}

	outOfRange := func(min, max float64) error {
		if f < min || f > max {
			return errors.Wrapf(ErrCliInvalidValue, "variable %s: %v out of range", v.Name, value)
		}
		return nil
	}

	buf := make([]byte, v.DataSize())
	switch v.DataType {
	case constant.UINT16:
		if err := outOfRange(0, math.MaxUint16); err != nil {
			return nil, err
		}
		binutil.WriteUint16(buf, uint16(math.Round(f)))
	case constant.INT16:
		if err := outOfRange(math.MinInt16, math.MaxInt16); err != nil {
			return nil, err
		}
		binutil.WriteUint16(buf, uint16(int16(math.Round(f))))
	case constant.INT32:
		if err := outOfRange(math.MinInt32, math.MaxInt32); err != nil {
			return nil, err
		}
		binutil.WriteUint32(buf, uint32(int32(math.Round(f))))
	case constant.FLOAT32:
		if err := outOfRange(-math.MaxFloat32, math.MaxFloat32); err != nil {
			return nil, err
		}
		binutil.WriteUint32(buf, math.Float32bits(float32(f)))
	case constant.INT64:
		var i int64
		if v.scaled() {
			if err := outOfRange(math.MinInt64, math.MaxInt64); err != nil {
				return nil, err
			}
			i = int64(math.Round(f))
		} else if err := mapstructure.WeakDecode(value, &i); err != nil {
			return nil, NewError(CodeCliInvalidValue, errors.Wrapf(err, "variable %s", v.Name))
		}
		binutil.WriteUint64(buf, uint64(i))
	case constant.FLOAT64:
		binutil.WriteUint64(buf, math.Float64bits(f))
	default:
		return nil, errors.Errorf("variable %s has unsupported data type %d", v.Name, v.DataType)
	}
	return buf, nil
}

func (v *Variable) SetValue(value interface{}) {
	v.Value = value
}

func (v *Variable) GetValue() interface{} {
	return v.Value
}

func (v *Variable) GetVariableName() string {
	return v.Name
}

func (v *Variable) SetVariableName(name string) {
	v.Name = name
}

func (v *Variable) GetVariableAccessMode() constant.AccessMode {
	return v.AccessMode
}

// DataItem is one area transfer of a multi-variable read or write.
type DataItem struct {
	Area     S7StoreArea
	WordLen  WordLen
	DBNumber int
	Start    int
	Amount   int
	Data     []byte
	Err      error
}

// Size is the number of bytes moved by the item.
func (di *DataItem) Size() int {
	return di.Amount * di.WordLen.Size()
}

type S7Device struct {
	runtime.DeviceMeta
	CollectorCycle uint                 `json:"collectorCycle"` // seconds
	Address        *S7Address           `json:"address"`
	Variables      []*Variable          `json:"variables"`
	VariablesMap   map[string]*Variable `json:"-"`
}

func (d *S7Device) GetVariable(name string) (runtime.VariableValue, bool) {
	v, ok := d.VariablesMap[name]
	return v, ok
}

// DeepCopyObject copies the device together with its address and variables.
// The copy is indexed.
func (d *S7Device) DeepCopyObject() runtime.RunObject {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Address != nil {
		address := *d.Address
		if d.Address.Option != nil {
			option := *d.Address.Option
			address.Option = &option
		}
		cp.Address = &address
	}
	if d.Variables != nil {
		cp.Variables = make([]*Variable, 0, len(d.Variables))
		for _, v := range d.Variables {
			variable := *v
			cp.Variables = append(cp.Variables, &variable)
		}
	}
	cp.IndexDevice()
	return &cp
}

func (d *S7Device) IndexDevice() {
	d.VariablesMap = make(map[string]*Variable, len(d.Variables))
	for _, v := range d.Variables {
		d.VariablesMap[v.Name] = v
	}
}

type S7Address struct {
	Location string           `json:"location"`
	Option   *S7AddressOption `json:"option"`
}

type S7AddressOption struct {
	Port           uint   `json:"port"`
	Rack           uint8  `json:"rack,omitempty"`
	Slot           uint8  `json:"slot,omitempty"`
	ConnectionType string `json:"connectionType,omitempty"` // pg, op or basic
	LocalTSAP      uint16 `json:"localTSAP,omitempty"`
	RemoteTSAP     uint16 `json:"remoteTSAP,omitempty"`
	PDURequest     int    `json:"pduRequest,omitempty"`
	Timeout        uint   `json:"timeout,omitempty"` // receive timeout in ms
}

type VariableSlice []*Variable

func (vs VariableSlice) Len() int {
	return len(vs)
}

func (vs VariableSlice) Less(i, j int) bool {
	ai, erri := vs[i].Parse()
	aj, errj := vs[j].Parse()
	if erri != nil || errj != nil {
		return erri == nil
	}
	if ai.Area != aj.Area {
		return ai.Area < aj.Area
	}
	if ai.DBNumber != aj.DBNumber {
		return ai.DBNumber < aj.DBNumber
	}
	if ai.Start != aj.Start {
		return ai.Start < aj.Start
	}
	return ai.Bit < aj.Bit
}

func (vs VariableSlice) Swap(i, j int) {
	vs[i], vs[j] = vs[j], vs[i]
}
