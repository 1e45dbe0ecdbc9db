package model

import (
	"fmt"

	s7 "harnss7/pkg/protocol/s7/runtime"
)

var (
	_ S7Modeler = (*S7300)(nil)
	_ S7Modeler = (*S71200)(nil)
	_ S7Modeler = (*S71500)(nil)
	_ S7Modeler = (*Logo)(nil)
)

var S7Modelers = map[string]S7Modeler{
	"s7300":  &S7300{MaxConn: 4},
	"s7400":  &S7300{MaxConn: 8},
	"s71200": &S71200{},
	"s71500": &S71500{},
	"logo":   &Logo{Remote: 0x0200},
	"s7200":  &Logo{Local: 0x1000, Remote: 0x1001},
}

// S7Modeler knows how a PLC family is addressed.
type S7Modeler interface {
	// TSAP returns the local and remote TSAP of a session to the PLC.
	TSAP(option *s7.S7AddressOption) (local uint16, remote uint16, err error)
	// PDURequest is the PDU length asked for during setup.
	PDURequest(option *s7.S7AddressOption) int
	// MaxConnections bounds the sessions opened by one collector.
	MaxConnections() int
}

func connectionType(option *s7.S7AddressOption) (s7.ConnectionType, error) {
	if len(option.ConnectionType) == 0 {
		return s7.PG, nil
	}
	ct, ok := s7.StringToConnectionType[option.ConnectionType]
	if !ok {
		return 0, fmt.Errorf("unknown connection type %s", option.ConnectionType)
	}
	return ct, nil
}

// rackSlotTSAP is the addressing of every CPU reached through its rack and slot.
func rackSlotTSAP(option *s7.S7AddressOption) (uint16, uint16, error) {
	if option.Rack > 7 || option.Slot > 31 {
		return 0, 0, fmt.Errorf("rack %d slot %d out of range", option.Rack, option.Slot)
	}
	ct, err := connectionType(option)
	if err != nil {
		return 0, 0, err
	}
	local, remote := uint16(s7.DefaultLocalTSAP), s7.RemoteTSAP(ct, int(option.Rack), int(option.Slot))
	if option.LocalTSAP != 0 {
		local = option.LocalTSAP
	}
	if option.RemoteTSAP != 0 {
		remote = option.RemoteTSAP
	}
	return local, remote, nil
}

func pduRequest(option *s7.S7AddressOption, def int) int {
	if option.PDURequest != 0 {
		return option.PDURequest
	}
	return def
}
