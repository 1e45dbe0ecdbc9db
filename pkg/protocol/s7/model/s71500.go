package model

import s7 "harnss7/pkg/protocol/s7/runtime"

type S71500 struct {
}

func (s *S71500) TSAP(option *s7.S7AddressOption) (uint16, uint16, error) {
	return rackSlotTSAP(option)
}

func (s *S71500) PDURequest(option *s7.S7AddressOption) int {
	return pduRequest(option, s7.DefaultPDURequest)
}

func (s *S71500) MaxConnections() int {
	return 8
}
