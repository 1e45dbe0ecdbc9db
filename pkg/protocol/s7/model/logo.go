package model

import s7 "harnss7/pkg/protocol/s7/runtime"

// Logo addresses PLCs through fixed TSAPs instead of rack and slot.
// LOGO! 0BA7/0BA8 answer on 02.00, S7-200 CP243 on 10.01.
type Logo struct {
	Local  uint16
	Remote uint16
}

func (l *Logo) TSAP(option *s7.S7AddressOption) (uint16, uint16, error) {
	local, remote := l.Local, l.Remote
	if local == 0 {
		local = s7.DefaultLocalTSAP
	}
	if option.LocalTSAP != 0 {
		local = option.LocalTSAP
	}
	if option.RemoteTSAP != 0 {
		remote = option.RemoteTSAP
	}
	return local, remote, nil
}

func (l *Logo) PDURequest(option *s7.S7AddressOption) int {
	return pduRequest(option, s7.MinPDURequest)
}

func (l *Logo) MaxConnections() int {
	return 1
}
