package s7

import (
	"context"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
)

// Object is an opaque handle to a client registered in the process-wide
// handle table. The zero handle is never valid.
type Object uintptr

var objects = struct {
	sync.RWMutex
	clients map[Object]*Client
	next    Object
}{
	clients: make(map[Object]*Client),
	next:    1,
}

func lookup(obj Object) (*Client, bool) {
	objects.RLock()
	defer objects.RUnlock()
	c, ok := objects.clients[obj]
	return c, ok
}

func invalidHandle() int {
	return int(s7runtime.CodeCliInvalidParams)
}

// Create allocates a client and returns its handle.
func Create() Object {
	objects.Lock()
	defer objects.Unlock()
	obj := objects.next
	objects.next++
	if objects.next == 0 {
		objects.next = 1
	}
	objects.clients[obj] = NewClient()
	return obj
}

// Destroy disconnects and unregisters the client, then zeroes the handle.
func Destroy(obj *Object) {
	if obj == nil {
		return
	}
	objects.Lock()
	c, ok := objects.clients[*obj]
	delete(objects.clients, *obj)
	objects.Unlock()
	if ok {
		c.Destroy()
	}
	*obj = 0
}

// ConnectTo connects the client to the CPU at address, rack and slot and
// returns 0 or a result code.
func ConnectTo(obj Object, address string, rack, slot int) int {
	c, ok := lookup(obj)
	if !ok {
		return invalidHandle()
	}
	return s7runtime.Code(c.ConnectTo(context.Background(), address, rack, slot))
}

// SetParam sets a numbered parameter. value may be a number, a numeric
// string or a pointer to either.
func SetParam(obj Object, paramNumber int, value interface{}) int {
	c, ok := lookup(obj)
	if !ok {
		return invalidHandle()
	}
	return s7runtime.Code(c.SetParam(s7runtime.ParamNumber(paramNumber), value))
}

// GetParam stores the parameter value into out, which must be a pointer to
// a numeric type.
func GetParam(obj Object, paramNumber int, out interface{}) int {
	c, ok := lookup(obj)
	if !ok {
		return invalidHandle()
	}
	if out == nil {
		return int(s7runtime.CodeCliInvalidParams)
	}
	value, err := c.GetParam(s7runtime.ParamNumber(paramNumber))
	if err != nil {
		return s7runtime.Code(err)
	}
	if err = mapstructure.WeakDecode(value, out); err != nil {
		return s7runtime.Code(errors.Wrap(s7runtime.ErrCliInvalidParams, err.Error()))
	}
	return 0
}

func Disconnect(obj Object) int {
	c, ok := lookup(obj)
	if !ok {
		return invalidHandle()
	}
	return s7runtime.Code(c.Disconnect())
}

func SetConnectionType(obj Object, connectionType uint16) int {
	c, ok := lookup(obj)
	if !ok {
		return invalidHandle()
	}
	return s7runtime.Code(c.SetConnectionType(s7runtime.ConnectionType(connectionType)))
}

// ErrorText renders a result code returned by the handle functions.
func ErrorText(code int) string {
	return s7runtime.ErrorText(uint32(code))
}
