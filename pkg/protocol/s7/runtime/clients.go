package runtime

import (
	"container/list"
	"context"
	"sync"

	"k8s.io/klog/v2"
)

// Messenger is a connected S7 session able to run multi-variable jobs.
type Messenger interface {
	ReadMultiVars(ctx context.Context, items []*DataItem) error
	WriteMultiVars(ctx context.Context, items []*DataItem) error
	Reconnect(ctx context.Context) error
	PDULength() int
	Available() bool
	Close()
}

// Clients is a pool of messengers shared by the collector goroutines.
type Clients struct {
	NewMessenger func(ctx context.Context) (Messenger, error)
	Messengers   *list.List
	Max          int
	Idle         int
	Mux          *sync.Mutex
	ConnRequests map[uint64]chan Messenger
	NextRequest  uint64
	closed       bool
}

func NewClients(messengers []Messenger, newMessenger func(ctx context.Context) (Messenger, error)) *Clients {
	ms := list.New()
	for _, m := range messengers {
		ms.PushBack(m)
	}
	return &Clients{
		NewMessenger: newMessenger,
		Messengers:   ms,
		Max:          len(messengers),
		Idle:         len(messengers),
		Mux:          &sync.Mutex{},
		ConnRequests: make(map[uint64]chan Messenger),
		NextRequest:  1,
	}
}

func (t *Clients) GetMessenger(ctx context.Context) (Messenger, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.Mux.Lock()
	if t.closed {
		t.Mux.Unlock()
		return nil, ErrMessengerClosed
	}
	if t.Idle > 0 {
		t.Idle = t.Idle - 1
		front := t.Messengers.Front()
		messenger := front.Value.(Messenger)
		t.Messengers.Remove(front)
		t.Mux.Unlock()
		return messenger, nil
	}

	mCh := make(chan Messenger, 1)
	key := t.nextRequestKey()
	t.ConnRequests[key] = mCh
	t.Mux.Unlock()

	select {
	case <-ctx.Done():
		t.Mux.Lock()
		delete(t.ConnRequests, key)
		t.Mux.Unlock()
		// a messenger may have been handed over while we gave up
		select {
		default:
		case m, ok := <-mCh:
			if ok {
				t.ReleaseMessenger(m)
			}
		}
		return nil, ctx.Err()
	case m, ok := <-mCh:
		if !ok {
			return nil, ErrMessengerClosed
		}
		return m, nil
	}
}

func (t *Clients) ReleaseMessenger(messenger Messenger) {
	if messenger == nil {
		return
	}
	t.Mux.Lock()
	defer t.Mux.Unlock()
	if t.closed {
		messenger.Close()
		return
	}
	if t.Idle == 0 && len(t.ConnRequests) > 0 {
		var mCh chan Messenger
		var key uint64
		for key, mCh = range t.ConnRequests {
			break
		}
		delete(t.ConnRequests, key)
		mCh <- messenger
	} else {
		t.Messengers.PushBack(messenger)
		t.Idle = t.Idle + 1
	}
}

func (t *Clients) Destroy(ctx context.Context) {
	t.Mux.Lock()
	defer t.Mux.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for t.Messengers.Len() > 0 {
		e := t.Messengers.Front()
		m := e.Value.(Messenger)
		m.Close()
		t.Messengers.Remove(e)
	}
	t.Idle = 0

	for key, messengersRequest := range t.ConnRequests {
		close(messengersRequest)
		delete(t.ConnRequests, key)
	}
	klog.V(4).InfoS("Destroyed s7 messengers", "max", t.Max)
}

func (t *Clients) nextRequestKey() uint64 {
	next := t.NextRequest
	t.NextRequest++
	return next
}
