package model

import s7 "harnss7/pkg/protocol/s7/runtime"

// S71200 needs PUT/GET access enabled and only accepts optimized-off DBs.
type S71200 struct {
}

func (s *S71200) TSAP(option *s7.S7AddressOption) (uint16, uint16, error) {
	return rackSlotTSAP(option)
}

func (s *S71200) PDURequest(option *s7.S7AddressOption) int {
	return pduRequest(option, 240)
}

func (s *S71200) MaxConnections() int {
	return 3
}
