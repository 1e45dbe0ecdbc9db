package s7

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"harnss7/pkg/apis/response"
	"harnss7/pkg/protocol/s7/model"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	"harnss7/pkg/runtime/constant"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

var _ runtime.Broker = (*S7Collector)(nil)

const (
	maxRetry            = 3
	framesPerMessenger  = 5
	defaultCollectCycle = time.Second
)

type variableParse struct {
	variable *s7runtime.Variable
	bit      int
}

// readFrame is one multi-variable read: at most MaxVars items whose answer
// fits the negotiated PDU. Variables sharing bytes share the item.
type readFrame struct {
	items     []*s7runtime.DataItem
	variables [][]*variableParse
	index     map[string]int
}

func (f *readFrame) names(i int) string {
	names := make([]string, 0, len(f.variables[i]))
	for _, vp := range f.variables[i] {
		names = append(names, vp.variable.Name)
	}
	return strings.Join(names, ",")
}

func (f *readFrame) parse() *runtime.ParseVariableResult {
	pvr := &runtime.ParseVariableResult{VariableSlice: make([]runtime.VariableValue, 0, len(f.items))}
	for i, item := range f.items {
		if item.Err != nil {
			pvr.Err = append(pvr.Err, errors.Wrapf(item.Err, "variables %s", f.names(i)))
			continue
		}
		for _, vp := range f.variables[i] {
			value, err := vp.variable.Decode(item.Data, vp.bit)
			if err != nil {
				pvr.Err = append(pvr.Err, err)
				continue
			}
			copied := *vp.variable
			copied.Value = value
			pvr.VariableSlice = append(pvr.VariableSlice, &copied)
		}
	}
	return pvr
}

// newReadFrames groups the variables by area and address and packs them
// into frames for a PDU of pduLength bytes.
func newReadFrames(variables []*s7runtime.Variable, pduLength int) ([]*readFrame, map[string]*s7runtime.VariableAddress, error) {
	sorted := make(s7runtime.VariableSlice, len(variables))
	copy(sorted, variables)
	sort.Sort(sorted)

	addresses := make(map[string]*s7runtime.VariableAddress, len(sorted))
	frames := make([]*readFrame, 0)
	frame := &readFrame{index: map[string]int{}}
	for _, variable := range sorted {
		va, err := variable.Parse()
		if err != nil {
			return nil, nil, err
		}
		addresses[variable.Name] = va
		vp := &variableParse{variable: variable, bit: va.Bit}

		key := va.Key(variable.DataSize())
		if i, exist := frame.index[key]; exist {
			frame.variables[i] = append(frame.variables[i], vp)
			continue
		}

		item := variable.ReadItem(va)
		if len(frame.items) > 0 && !fitsRead(append(frame.items, item), pduLength) {
			frames = append(frames, frame)
			frame = &readFrame{index: map[string]int{}}
		}
		frame.index[key] = len(frame.items)
		frame.items = append(frame.items, item)
		frame.variables = append(frame.variables, []*variableParse{vp})
	}
	if len(frame.items) > 0 {
		frames = append(frames, frame)
	}
	return frames, addresses, nil
}

// S7Collector polls the variables of one S7 device over a small pool of
// client sessions and writes actions back through the same pool.
type S7Collector struct {
	device        *s7runtime.S7Device
	clients       *s7runtime.Clients
	frames        []*readFrame
	addresses     map[string]*s7runtime.VariableAddress
	variableCount int
	cycle         time.Duration
	variableCh    chan *runtime.ParseVariableResult

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// messengerFactory connects new sessions to the device described by address.
func messengerFactory(modeler model.S7Modeler, address *s7runtime.S7Address) (func(ctx context.Context) (s7runtime.Messenger, error), error) {
	if address == nil || address.Option == nil || len(address.Location) == 0 {
		return nil, errors.Wrap(s7runtime.ErrCliInvalidParams, "s7 device has no address")
	}
	option := address.Option
	local, remote, err := modeler.TSAP(option)
	if err != nil {
		return nil, errors.Wrap(s7runtime.ErrCliInvalidParams, err.Error())
	}

	return func(ctx context.Context) (s7runtime.Messenger, error) {
		c := NewClient()
		c.SetConnectionParams(address.Location, local, remote)
		if option.Port != 0 {
			if err := c.SetParam(s7runtime.RemotePort, option.Port); err != nil {
				return nil, err
			}
		}
		if err := c.SetParam(s7runtime.PDURequest, modeler.PDURequest(option)); err != nil {
			return nil, err
		}
		if option.Timeout != 0 {
			if err := c.SetParam(s7runtime.RecvTimeout, option.Timeout); err != nil {
				return nil, err
			}
		}
		if err := c.Connect(ctx); err != nil {
			c.Destroy()
			return nil, errors.Wrapf(constant.ErrConnectDevice, "%s: %v", address.Location, err)
		}
		return c, nil
	}, nil
}

func NewCollector(d runtime.Device) (runtime.Broker, chan *runtime.ParseVariableResult, error) {
	device, ok := d.(*s7runtime.S7Device)
	if !ok {
		klog.V(2).InfoS("Failed to new s7 collector, device type not supported")
		return nil, nil, s7runtime.ErrDeviceType
	}
	modeler, ok := model.S7Modelers[device.DeviceModel]
	if !ok {
		klog.V(2).InfoS("Unsupported s7 device model", "deviceId", device.ID, "model", device.DeviceModel)
		return nil, nil, s7runtime.ErrDeviceType
	}
	if len(device.Variables) == 0 {
		return nil, nil, constant.ErrDeviceEmptyVariable
	}

	newMessenger, err := messengerFactory(modeler, device.Address)
	if err != nil {
		return nil, nil, err
	}
	ctx := context.Background()
	first, err := newMessenger(ctx)
	if err != nil {
		klog.V(2).InfoS("Failed to connect s7 device", "deviceId", device.ID, "err", err)
		return nil, nil, err
	}

	frames, addresses, err := newReadFrames(device.Variables, first.PDULength())
	if err != nil {
		first.Close()
		return nil, nil, err
	}

	size := len(frames)/framesPerMessenger + 1
	if max := modeler.MaxConnections(); size > max {
		size = max
	}
	messengers := []s7runtime.Messenger{first}
	for len(messengers) < size {
		m, err := newMessenger(ctx)
		if err != nil {
			klog.V(3).InfoS("Collect with fewer s7 sessions", "deviceId", device.ID, "sessions", len(messengers), "err", err)
			break
		}
		messengers = append(messengers, m)
	}

	cycle := time.Duration(device.CollectorCycle) * time.Second
	if cycle <= 0 {
		cycle = defaultCollectCycle
	}
	c := &S7Collector{
		device:        device,
		clients:       s7runtime.NewClients(messengers, newMessenger),
		frames:        frames,
		addresses:     addresses,
		variableCount: len(device.Variables),
		cycle:         cycle,
		variableCh:    make(chan *runtime.ParseVariableResult, 1),
	}
	klog.V(4).InfoS("New s7 collector", "deviceId", device.ID, "frames", len(frames), "sessions", len(messengers), "pdu", first.PDULength())
	return c, c.variableCh, nil
}

func (c *S7Collector) Collect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		wait.UntilWithContext(ctx, c.poll, c.cycle)
	}()
}

// Destroy stops polling, closes the sessions and then the result channel.
func (c *S7Collector) Destroy(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.clients.Destroy(ctx)
	close(c.variableCh)
}

func (c *S7Collector) poll(ctx context.Context) {
	results := make(chan *runtime.ParseVariableResult, len(c.frames))
	sw := &sync.WaitGroup{}
	for _, frame := range c.frames {
		sw.Add(1)
		go c.message(ctx, frame, results, sw)
	}
	sw.Wait()
	close(results)

	pvr := &runtime.ParseVariableResult{VariableSlice: make([]runtime.VariableValue, 0, c.variableCount)}
	for r := range results {
		pvr.Err = append(pvr.Err, r.Err...)
		pvr.VariableSlice = append(pvr.VariableSlice, r.VariableSlice...)
	}
	if ctx.Err() != nil {
		return
	}
	select {
	case c.variableCh <- pvr:
	case <-ctx.Done():
	}
}

func (c *S7Collector) message(ctx context.Context, frame *readFrame, results chan<- *runtime.ParseVariableResult, sw *sync.WaitGroup) {
	defer sw.Done()
	messenger, err := c.clients.GetMessenger(ctx)
	if err != nil {
		results <- &runtime.ParseVariableResult{Err: []error{err}}
		return
	}
	defer c.clients.ReleaseMessenger(messenger)

	if err := c.retry(ctx, messenger, func(m s7runtime.Messenger) error {
		return m.ReadMultiVars(ctx, frame.items)
	}); err != nil {
		klog.V(2).InfoS("Failed to read s7 variables", "deviceId", c.device.ID, "err", err)
		results <- &runtime.ParseVariableResult{Err: []error{err}}
		return
	}
	results <- frame.parse()
}

// retry runs fun up to three times, reconnecting the messenger when the
// link went down.
func (c *S7Collector) retry(ctx context.Context, messenger s7runtime.Messenger, fun func(m s7runtime.Messenger) error) error {
	var err error
	for i := 0; i < maxRetry; i++ {
		if !messenger.Available() {
			if err = messenger.Reconnect(ctx); err != nil {
				klog.V(3).InfoS("Failed to reconnect s7 device", "deviceId", c.device.ID, "err", err)
				continue
			}
		}
		if err = fun(messenger); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Wrap(s7runtime.ErrManyRetry, err.Error())
}

// DeliverAction writes the values of obj, keyed by variable name.
func (c *S7Collector) DeliverAction(ctx context.Context, obj map[string]interface{}) error {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := &response.MultiError{}
	items := make([]*s7runtime.DataItem, 0, len(names))
	for _, name := range names {
		variable, ok := c.device.VariablesMap[name]
		va, parsed := c.addresses[name]
		if !ok || !parsed {
			errs.Add(response.ErrResourceNotFound(name))
			continue
		}
		item, err := variable.WriteItem(va, obj[name])
		if err != nil {
			errs.Add(response.ErrVariableValueInvalid(name, err))
			continue
		}
		items = append(items, item)
	}
	if errs.Len() > 0 {
		return errs
	}

	messenger, err := c.clients.GetMessenger(ctx)
	if err != nil {
		return err
	}
	defer c.clients.ReleaseMessenger(messenger)
	if !messenger.Available() {
		if err := messenger.Reconnect(ctx); err != nil {
			return err
		}
	}

	for _, batch := range writeBatches(items, names, messenger.PDULength()) {
		if err := c.retry(ctx, messenger, func(m s7runtime.Messenger) error {
			return m.WriteMultiVars(ctx, batch.items)
		}); err != nil {
			errs.Add(err)
			continue
		}
		for i, item := range batch.items {
			if item.Err != nil {
				errs.Add(errors.Wrapf(item.Err, "variable %s", batch.names[i]))
			}
		}
	}
	if errs.Len() > 0 {
		return errs
	}
	klog.V(4).InfoS("Delivered s7 action", "deviceId", c.device.ID, "variables", names)
	return nil
}

type writeBatch struct {
	items []*s7runtime.DataItem
	names []string
}

func writeBatches(items []*s7runtime.DataItem, names []string, pduLength int) []*writeBatch {
	batches := make([]*writeBatch, 0, 1)
	offset := 0
	for _, group := range WriteGroups(items, pduLength) {
		if len(group) == 0 {
			continue
		}
		batches = append(batches, &writeBatch{items: group, names: names[offset : offset+len(group)]})
		offset += len(group)
	}
	return batches
}

// withClient runs fn on a pooled session of the collector.
func (c *S7Collector) withClient(ctx context.Context, fn func(client *Client) error) error {
	messenger, err := c.clients.GetMessenger(ctx)
	if err != nil {
		return err
	}
	defer c.clients.ReleaseMessenger(messenger)
	client, ok := messenger.(*Client)
	if !ok {
		return s7runtime.ErrDeviceType
	}
	if !client.Available() {
		if err := client.Reconnect(ctx); err != nil {
			return err
		}
	}
	return fn(client)
}

func (c *S7Collector) PlcStatus(ctx context.Context) (s7runtime.CpuStatus, error) {
	status := s7runtime.CpuStatusUnknown
	err := c.withClient(ctx, func(client *Client) (err error) {
		status, err = client.PlcStatus(ctx)
		return err
	})
	return status, err
}

func (c *S7Collector) ReadSZL(ctx context.Context, id, index uint16) (*SZL, error) {
	var szl *SZL
	err := c.withClient(ctx, func(client *Client) (err error) {
		szl, err = client.ReadSZL(ctx, id, index)
		return err
	})
	return szl, err
}

// PlcControl stops, hot starts or cold starts the CPU.
func (c *S7Collector) PlcControl(ctx context.Context, operation string) error {
	return c.withClient(ctx, func(client *Client) error {
		switch operation {
		case PlcOperationStop:
			return client.PlcStop(ctx)
		case PlcOperationHotStart:
			return client.PlcHotStart(ctx)
		case PlcOperationColdStart:
			return client.PlcColdStart(ctx)
		default:
			return errors.Wrapf(s7runtime.ErrCliInvalidParams, "plc operation %s", operation)
		}
	})
}
