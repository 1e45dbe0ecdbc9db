package model

import s7 "harnss7/pkg/protocol/s7/runtime"

// S7300 covers the S7-300 and S7-400 families, the CPU usually sits in slot 2.
type S7300 struct {
	MaxConn int
}

func (s *S7300) TSAP(option *s7.S7AddressOption) (uint16, uint16, error) {
	return rackSlotTSAP(option)
}

func (s *S7300) PDURequest(option *s7.S7AddressOption) int {
	return pduRequest(option, 240)
}

func (s *S7300) MaxConnections() int {
	return s.MaxConn
}
