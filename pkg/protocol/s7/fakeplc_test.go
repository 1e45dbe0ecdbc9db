package s7

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

// fakePLC is an in-process S7 server good enough to drive the client.
type fakePLC struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	memory   map[string][]byte
	pdu      uint16
	status   s7runtime.CpuStatus
	fragment bool
	// refuse answers every job with the given header error
	refuse uint16
	// hook may replace the answer to a job; nil keeps the default and an
	// empty answer swallows the request
	hook     func(pdu []byte) []byte
	requests [][]byte
	tsap     uint16
}

func newFakePLC(t *testing.T) *fakePLC {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &fakePLC{
		t:        t,
		listener: l,
		memory:   make(map[string][]byte),
		pdu:      240,
		status:   s7runtime.CpuStatusRun,
	}
	go p.serve()
	t.Cleanup(func() { _ = l.Close() })
	return p
}

func (p *fakePLC) port() int {
	return p.listener.Addr().(*net.TCPAddr).Port
}

// client returns a client pointed at the fake PLC, not yet connected.
func (p *fakePLC) client(t *testing.T) *Client {
	c := NewClient()
	require.NoError(t, c.SetParam(s7runtime.RemotePort, p.port()))
	t.Cleanup(c.Destroy)
	return c
}

func (p *fakePLC) connected(t *testing.T) *Client {
	c := p.client(t)
	require.NoError(t, c.ConnectTo(context.Background(), "127.0.0.1", 0, 2))
	return c
}

func (p *fakePLC) area(area byte, db int) []byte {
	key := fmt.Sprintf("%02x/%d", area, db)
	if p.memory[key] == nil {
		p.memory[key] = make([]byte, 2048)
	}
	return p.memory[key]
}

func (p *fakePLC) set(area s7runtime.S7StoreArea, db, start int, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(p.area(byte(area), db)[start:], data)
}

func (p *fakePLC) get(area s7runtime.S7StoreArea, db, start, size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return binutil.Dup(p.area(byte(area), db)[start : start+size])
}

func (p *fakePLC) serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakePLC) handle(conn net.Conn) {
	defer conn.Close()
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		frame := make([]byte, binutil.ParseUint16BigEndian(header[2:]))
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[4:]); err != nil {
			return
		}
		switch frame[5] {
		case cotpCR:
			p.mu.Lock()
			p.tsap = binutil.ParseUint16BigEndian(frame[20:])
			p.mu.Unlock()
			cc := binutil.Dup(frame)
			cc[5] = cotpCC
			if _, err := conn.Write(cc); err != nil {
				return
			}
		case cotpDT:
			answer := p.answer(frame[isoHeaderSize:])
			if len(answer) == 0 {
				continue
			}
			if err := p.send(conn, answer); err != nil {
				return
			}
		}
	}
}

func (p *fakePLC) send(conn net.Conn, pdu []byte) error {
	p.mu.Lock()
	fragment := p.fragment
	p.mu.Unlock()
	if !fragment || len(pdu) < 4 {
		_, err := conn.Write(newIsoDataPacket(pdu))
		return err
	}
	half := len(pdu) / 2
	first := newIsoDataPacket(pdu[:half])
	first[6] = 0x00
	if _, err := conn.Write(first); err != nil {
		return err
	}
	_, err := conn.Write(newIsoDataPacket(pdu[half:]))
	return err
}

func ackData(request []byte, errCode uint16, params, data []byte) []byte {
	buf := make([]byte, ackHeaderSize, ackHeaderSize+len(params)+len(data))
	buf[0] = s7ProtocolID
	buf[1] = rosctrAckData
	copy(buf[4:6], request[4:6])
	binutil.WriteUint16(buf[6:], uint16(len(params)))
	binutil.WriteUint16(buf[8:], uint16(len(data)))
	binutil.WriteUint16(buf[10:], errCode)
	buf = append(buf, params...)
	return append(buf, data...)
}

func userData(request []byte, params, data []byte) []byte {
	buf := newS7PDU(rosctrUserData, params, data)
	copy(buf[4:6], request[4:6])
	return buf
}

func (p *fakePLC) answer(pdu []byte) []byte {
	p.mu.Lock()
	p.requests = append(p.requests, binutil.Dup(pdu))
	hook, refuse := p.hook, p.refuse
	p.mu.Unlock()
	if hook != nil {
		if answer := hook(pdu); answer != nil {
			return answer
		}
	}

	parLen := int(binutil.ParseUint16BigEndian(pdu[6:]))
	params := pdu[requestHeaderSize : requestHeaderSize+parLen]
	data := pdu[requestHeaderSize+parLen:]

	if pdu[1] == rosctrUserData {
		return p.szl(pdu, params, data)
	}
	if refuse != 0 && params[0] != funcSetupComm {
		return ackData(pdu, refuse, params[:1], nil)
	}

	switch params[0] {
	case funcSetupComm:
		answer := binutil.Dup(params)
		p.mu.Lock()
		requested := binutil.ParseUint16BigEndian(params[6:])
		if requested < p.pdu {
			p.pdu = requested
		}
		binutil.WriteUint16(answer[6:], p.pdu)
		p.mu.Unlock()
		return ackData(pdu, 0, answer, nil)
	case funcReadVar:
		return ackData(pdu, 0, params[:2], p.readVar(params))
	case funcWriteVar:
		return ackData(pdu, 0, params[:2], p.writeVar(params, data))
	case funcStop:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.status == s7runtime.CpuStatusStop {
			return ackData(pdu, 0, []byte{funcStop, 0x07}, nil)
		}
		p.status = s7runtime.CpuStatusStop
		return ackData(pdu, 0, []byte{funcStop}, nil)
	case funcStart:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.status == s7runtime.CpuStatusRun {
			return ackData(pdu, 0, []byte{funcStart, 0x03}, nil)
		}
		p.status = s7runtime.CpuStatusRun
		return ackData(pdu, 0, []byte{funcStart}, nil)
	}
	return ackData(pdu, 0x8104, params[:1], nil)
}

type fakeItem struct {
	wordLen s7runtime.WordLen
	amount  int
	db      int
	area    byte
	address int
}

func (it fakeItem) span() (int, int) {
	switch it.wordLen {
	case s7runtime.WLBit:
		return it.address >> 3, 1
	case s7runtime.WLCounter, s7runtime.WLTimer:
		return it.address * 2, it.amount * 2
	default:
		return it.address >> 3, it.amount * it.wordLen.Size()
	}
}

func parseFakeItems(params []byte) []fakeItem {
	items := make([]fakeItem, params[1])
	for i := range items {
		it := params[2+i*readItemSize:]
		items[i] = fakeItem{
			wordLen: s7runtime.WordLen(it[3]),
			amount:  int(binutil.ParseUint16BigEndian(it[4:])),
			db:      int(binutil.ParseUint16BigEndian(it[6:])),
			area:    it[8],
			address: int(it[9])<<16 | int(it[10])<<8 | int(it[11]),
		}
	}
	return items
}

func (p *fakePLC) readVar(params []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := parseFakeItems(params)
	var data []byte
	for i, it := range items {
		if it.area == byte(s7runtime.DB) && it.db == 0 {
			data = append(data, 0x0a, 0x00, 0x00, 0x00)
			continue
		}
		start, size := it.span()
		mem := p.area(it.area, it.db)
		switch it.wordLen {
		case s7runtime.WLBit:
			bit := (mem[start] >> (it.address & 7)) & 1
			data = append(data, itemReturnOK, s7runtime.TSResBit, 0x00, 0x01, bit)
		case s7runtime.WLCounter, s7runtime.WLTimer:
			data = append(data, itemReturnOK, s7runtime.TSResOctet, byte(size>>8), byte(size))
			data = append(data, mem[start:start+size]...)
		default:
			data = append(data, itemReturnOK, s7runtime.TSResByte, byte((size*8)>>8), byte(size*8))
			data = append(data, mem[start:start+size]...)
		}
		if it.wordLen != s7runtime.WLBit && size%2 != 0 && i < len(items)-1 {
			data = append(data, 0x00)
		}
		if it.wordLen == s7runtime.WLBit && i < len(items)-1 {
			data = append(data, 0x00)
		}
	}
	return data
}

func (p *fakePLC) writeVar(params, data []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := parseFakeItems(params)
	result := make([]byte, len(items))
	offset := 0
	for i, it := range items {
		ts := data[offset+1]
		length := int(binutil.ParseUint16BigEndian(data[offset+2:]))
		if ts != s7runtime.TSResBit && ts != s7runtime.TSResOctet {
			length >>= 3
		}
		value := data[offset+4 : offset+4+length]
		offset += 4 + length
		if length%2 != 0 && i < len(items)-1 {
			offset++
		}

		if it.area == byte(s7runtime.DB) && it.db == 0 {
			result[i] = 0x0a
			continue
		}
		start, _ := it.span()
		mem := p.area(it.area, it.db)
		if it.wordLen == s7runtime.WLBit {
			mask := byte(1) << (it.address & 7)
			if value[0] != 0 {
				mem[start] |= mask
			} else {
				mem[start] &^= mask
			}
		} else {
			copy(mem[start:], value)
		}
		result[i] = itemReturnOK
	}
	return result
}

// szl answers 0x0424 with the cpu status and 0x0011 in two fragments.
func (p *fakePLC) szl(request, params, data []byte) []byte {
	answerParams := []byte{0x00, 0x01, 0x12, 0x08, 0x12, 0x84, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}
	if params[4] == 0x12 {
		// second fragment of 0x0011
		answerParams[7] = params[7]
		payload := []byte{0x00, 0x07, 0x36, 0x45}
		return userData(request, answerParams, append([]byte{itemReturnOK, s7runtime.TSResOctet, 0x00, byte(len(payload))}, payload...))
	}

	id := binutil.ParseUint16BigEndian(data[4:])
	var payload []byte
	switch id {
	case szlCpuStatus:
		p.mu.Lock()
		status := p.status
		p.mu.Unlock()
		payload = []byte{0x04, 0x24, 0x00, 0x00, 0x00, 0x14, 0x00, 0x01}
		record := make([]byte, 20)
		record[1] = 0x51
		record[3] = byte(status)
		payload = append(payload, record...)
	case 0x0011:
		answerParams[8] = 0x01
		answerParams[9] = 0x01
		payload = []byte{0x00, 0x11, 0x00, 0x00, 0x00, 0x04, 0x00, 0x02, 0x00, 0x01, 0x36, 0x45}
	default:
		binutil.WriteUint16(answerParams[10:], 0xd401)
		return userData(request, answerParams, []byte{0x0a, 0x00, 0x00, 0x00})
	}
	return userData(request, answerParams, append([]byte{itemReturnOK, s7runtime.TSResOctet, byte(len(payload) >> 8), byte(len(payload))}, payload...))
}

func (p *fakePLC) setHook(hook func(pdu []byte) []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = hook
}

func (p *fakePLC) setFragment(fragment bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fragment = fragment
}

func (p *fakePLC) setStatus(status s7runtime.CpuStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *fakePLC) remoteTSAP() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tsap
}

func (p *fakePLC) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakePLC) lastRequest() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

func (p *fakePLC) address() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(p.port()))
}
