package runtime

import (
	"encoding/json"
	"fmt"
)

func (dt S7StoreArea) MarshalJSON() ([]byte, error) {
	if s, ok := StoreAddressToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown store area %d", dt)
}

func (dt *S7StoreArea) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToStoreAddress[s]
	if !ok {
		return fmt.Errorf("unknown store area %s", s)
	}
	*dt = v
	return nil
}

func (ct ConnectionType) MarshalJSON() ([]byte, error) {
	if s, ok := ConnectionTypeToString[ct]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown connection type %d", ct)
}

func (ct *ConnectionType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToConnectionType[s]
	if !ok {
		return fmt.Errorf("unknown connection type %s", s)
	}
	*ct = v
	return nil
}

func (cs CpuStatus) MarshalJSON() ([]byte, error) {
	if s, ok := CpuStatusToString[cs]; ok {
		return json.Marshal(s)
	}
	return json.Marshal(CpuStatusToString[CpuStatusUnknown])
}
