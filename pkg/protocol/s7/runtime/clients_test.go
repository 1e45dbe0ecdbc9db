package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type fakeMessenger struct {
	closed atomic.Bool
}

func (f *fakeMessenger) ReadMultiVars(context.Context, []*DataItem) error  { return nil }
func (f *fakeMessenger) WriteMultiVars(context.Context, []*DataItem) error { return nil }
func (f *fakeMessenger) Reconnect(context.Context) error                  { return nil }
func (f *fakeMessenger) PDULength() int                                   { return 480 }
func (f *fakeMessenger) Available() bool                                  { return !f.closed.Load() }
func (f *fakeMessenger) Close()                                           { f.closed.Store(true) }

func TestClientsGetRelease(t *testing.T) {
	m := &fakeMessenger{}
	clients := NewClients([]Messenger{m}, nil)

	got, err := clients.GetMessenger(context.Background())
	require.NoError(t, err)
	assert.Same(t, m, got)
	assert.Equal(t, 0, clients.Idle)

	// second caller waits until the first one releases
	done := make(chan Messenger)
	go func() {
		waited, err := clients.GetMessenger(context.Background())
		assert.NoError(t, err)
		done <- waited
	}()

	time.Sleep(20 * time.Millisecond)
	clients.ReleaseMessenger(got)
	select {
	case waited := <-done:
		assert.Same(t, m, waited)
	case <-time.After(time.Second):
		t.Fatal("waiter was not served")
	}
}

func TestClientsCancelledWaiter(t *testing.T) {
	m := &fakeMessenger{}
	clients := NewClients([]Messenger{m}, nil)
	_, err := clients.GetMessenger(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = clients.GetMessenger(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	clients.ReleaseMessenger(m)
	assert.Equal(t, 1, clients.Idle)
}

func TestClientsDestroy(t *testing.T) {
	m := &fakeMessenger{}
	clients := NewClients([]Messenger{m}, nil)
	clients.Destroy(context.Background())
	assert.True(t, m.closed.Load())

	_, err := clients.GetMessenger(context.Background())
	assert.ErrorIs(t, err, ErrMessengerClosed)

	// releasing into a destroyed pool closes the messenger
	other := &fakeMessenger{}
	clients.ReleaseMessenger(other)
	assert.True(t, other.closed.Load())
}
