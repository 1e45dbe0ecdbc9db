package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"harnss7/pkg/apis"
	"harnss7/pkg/apis/response"
	"harnss7/pkg/gateway"
	"harnss7/pkg/generic"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	"harnss7/pkg/runtime/constant"
	v1 "harnss7/pkg/v1"
	"k8s.io/klog/v2"
)

type Option func(*Manager)

func WithCloser(label string, closer func(context.Context) error) Option {
	return func(m *Manager) {
		m.closers = append(m.closers, runtime.LabeledCloser{Label: label, Closer: closer})
	}
}

func WithDeviceManager(deviceType string, dm DeviceManager) Option {
	return func(m *Manager) {
		m.deviceManager[deviceType] = dm
	}
}

type deviceStatus struct {
	id     string
	status runtime.DeviceStatusCh
}

// Manager owns every configured device and the broker collecting it.
type Manager struct {
	gatewayMeta      *gateway.GatewayMeta
	mqttClient       mqtt.Client
	mu               *sync.Mutex
	deviceManager    map[string]DeviceManager
	devices          *sync.Map
	heartBeatDevices *sync.Map
	store            *generic.Store
	brokers          map[string]runtime.Broker
	stopCh           <-chan struct{}
	deviceStatusCh   chan deviceStatus
	closers          []runtime.LabeledCloser
}

// NewManager builds a device manager, mqttClient may be nil in which case
// collected values are only kept in memory.
func NewManager(store *generic.Store, mqttClient mqtt.Client, gatewayMeta *gateway.GatewayMeta, stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		gatewayMeta:      gatewayMeta,
		mqttClient:       mqttClient,
		mu:               &sync.Mutex{},
		devices:          &sync.Map{},
		heartBeatDevices: &sync.Map{},
		deviceManager:    make(map[string]DeviceManager, len(DeviceManagers)),
		brokers:          make(map[string]runtime.Broker),
		store:            store,
		stopCh:           stop,
		deviceStatusCh:   make(chan deviceStatus),
	}
	for k, v := range DeviceManagers {
		m.deviceManager[k] = v
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Init() {
	devices, err := m.store.LoadResource()
	if err != nil {
		klog.V(2).InfoS("Failed to load devices", "err", err)
	}
	for _, d := range devices {
		m.devices.Store(d.GetID(), d)
		m.startCollect(d)
	}

	go m.heartBeatDetection()
	go m.listeningDeviceStatusCh()
}

func (m *Manager) CreateDevice(object v1.DeviceType) (runtime.Device, error) {
	dm, ok := m.deviceManager[object.GetDeviceType()]
	if !ok {
		return nil, constant.ErrDeviceType
	}
	device, err := dm.CreateDevice(object)
	if err != nil {
		klog.V(2).InfoS("Failed to create device", "err", err)
		return nil, err
	}

	created, err := m.store.Create(device)
	if err != nil {
		klog.V(2).InfoS("Failed to store device", "err", err)
		return nil, err
	}
	m.devices.Store(created.GetID(), created)
	klog.V(2).InfoS("Created device", "deviceId", created.GetID(), "deviceModel", created.GetDeviceModel())
	m.startCollect(created)
	return created, nil
}

func (m *Manager) DeleteDevice(id string, version string) (runtime.Device, error) {
	device, err := m.GetDeviceById(id, true)
	if err != nil {
		return nil, err
	}
	if device.GetVersion() != version {
		return nil, apis.ErrMismatch
	}

	d, err := m.deviceManager[device.GetDeviceType()].DeleteDevice(device)
	if err != nil {
		klog.V(2).InfoS("Failed to delete device", "err", err)
		return nil, err
	}
	if _, err = m.store.Delete(d); err != nil {
		klog.V(2).InfoS("Failed to delete device", "deviceId", id, "err", err)
		return nil, err
	}
	m.devices.Delete(id)
	m.cancelCollect(device)
	klog.V(2).InfoS("Deleted device", "deviceId", id)
	return m.foldDevice(device), nil
}

// UpdateDeviceById replaces the definition of a device. A device that was
// collecting is reconnected with the new definition.
func (m *Manager) UpdateDeviceById(id string, version string, newObj v1.DeviceType) (runtime.Device, error) {
	d, err := m.GetDeviceById(id, true)
	if err != nil {
		return nil, err
	}
	if version != d.GetVersion() {
		return nil, apis.ErrMismatch
	}

	dm := m.deviceManager[d.GetDeviceType()]
	cd := d.DeepCopyObject().(runtime.Device)
	if err = dm.UpdateValidation(newObj, cd); err != nil {
		return nil, err
	}
	device, err := dm.UpdateDevice(id, newObj, cd)
	if err != nil {
		klog.V(2).InfoS("Failed to update device", "err", err)
		return nil, err
	}

	running := d.GetCollectStatus() != runtime.CollectStatusToString[runtime.Stopped]
	m.cancelCollect(d)
	device.SetCollectStatus(runtime.CollectStatusToString[runtime.Stopped])
	updated, err := m.store.Update(device)
	if err != nil {
		klog.V(2).InfoS("Failed to update device", "err", err)
		if running {
			m.startCollect(d)
		}
		return nil, err
	}
	m.devices.Store(id, updated)
	if running {
		m.startCollect(updated)
	}
	return updated, nil
}

func (m *Manager) ListDevices(filter *runtime.DeviceFilter, exploded bool) ([]runtime.Device, error) {
	rds := make([]runtime.Device, 0)
	predicates := runtime.ParseTypeFilter(filter)

	// descend
	byModTime := func(d1, d2 runtime.Device) bool { return d1.GetModTime().After(d2.GetModTime()) }
	sorter := runtime.ByDevice(byModTime)

	m.devices.Range(func(key, value interface{}) bool {
		v := value.(runtime.Device)
		for _, p := range predicates {
			if !p(v) {
				return true
			}
		}
		rds = sorter.Insert(rds, v)
		return true
	})

	if !exploded {
		for i := range rds {
			rds[i] = m.foldDevice(rds[i])
		}
	}
	return rds, nil
}

func (m *Manager) GetDeviceById(id string, exploded bool) (runtime.Device, error) {
	d, isExist := m.devices.Load(id)
	if !isExist {
		return nil, os.ErrNotExist
	}
	device := d.(runtime.Device)
	if !exploded {
		return m.foldDevice(device), nil
	}
	return device, nil
}

func (m *Manager) SwitchDeviceStatus(id string, status string) error {
	if _, err := m.GetDeviceById(id, true); err != nil {
		klog.V(2).InfoS("Failed to find device", "deviceId", id)
		return err
	}
	sc, ok := runtime.StringToDeviceStatusCh[status]
	if !ok {
		klog.V(2).InfoS("Unsupported device status", "status", status)
		return response.ErrDeviceOperatorUnSupported(status)
	}
	select {
	case m.deviceStatusCh <- deviceStatus{id: id, status: sc}:
		return nil
	case <-m.stopCh:
		return apis.ErrInternal
	}
}

// DeliverAction writes the values of actions to their read-write variables.
// Nothing is written when one of the actions is not acceptable.
func (m *Manager) DeliverAction(ctx context.Context, id string, actions v1.Actions) error {
	device, err := m.GetDeviceById(id, true)
	if err != nil {
		klog.V(2).InfoS("Failed to find device", "deviceId", id)
		return response.NewMultiError(response.ErrDeviceNotFound(id))
	}

	errs := &response.MultiError{}
	legalActions, names, duplicates := actions.Values()
	for _, name := range names {
		v, ok := device.GetVariable(name)
		if !ok || v.GetVariableAccessMode() != constant.AccessModeReadWrite {
			errs.Add(response.ErrResourceNotFound(name))
			delete(legalActions, name)
		}
	}
	for _, name := range duplicates {
		errs.Add(response.ErrResourceExists(name))
	}
	if errs.Len() > 0 {
		return errs
	}
	if len(legalActions) == 0 {
		return response.NewMultiError(response.ErrLegalActionNotFound)
	}

	broker, err := m.broker(device)
	if err != nil {
		return response.NewMultiError(err)
	}
	return broker.DeliverAction(ctx, legalActions)
}

func (m *Manager) broker(device runtime.Device) (runtime.Broker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[device.GetID()]
	if !ok {
		klog.V(2).InfoS("Device is not connected", "deviceId", device.GetID())
		return nil, response.ErrDeviceNotConnect(device.GetID())
	}
	return b, nil
}

func (m *Manager) plcOperator(id string) (PlcOperator, error) {
	device, err := m.GetDeviceById(id, true)
	if err != nil {
		return nil, err
	}
	b, err := m.broker(device)
	if err != nil {
		return nil, err
	}
	op, ok := b.(PlcOperator)
	if !ok {
		return nil, response.ErrDeviceOperatorUnSupported(device.GetDeviceType())
	}
	return op, nil
}

func (m *Manager) PlcStatus(ctx context.Context, id string) (s7runtime.CpuStatus, error) {
	op, err := m.plcOperator(id)
	if err != nil {
		return s7runtime.CpuStatusUnknown, err
	}
	return op.PlcStatus(ctx)
}

func (m *Manager) PlcControl(ctx context.Context, id string, operation string) error {
	op, err := m.plcOperator(id)
	if err != nil {
		return err
	}
	if err = op.PlcControl(ctx, operation); err != nil {
		klog.V(2).InfoS("Failed to control plc", "deviceId", id, "operation", operation, "err", err)
		return err
	}
	klog.V(2).InfoS("Controlled plc", "deviceId", id, "operation", operation)
	return nil
}

func (m *Manager) ReadSZL(ctx context.Context, id string, szlID, index uint16) (*s7.SZL, error) {
	op, err := m.plcOperator(id)
	if err != nil {
		return nil, err
	}
	return op.ReadSZL(ctx, szlID, index)
}

func (m *Manager) cancelCollect(obj runtime.Device) {
	m.heartBeatDevices.Delete(obj.GetID())
	m.mu.Lock()
	b, ok := m.brokers[obj.GetID()]
	delete(m.brokers, obj.GetID())
	m.mu.Unlock()
	if ok {
		b.Destroy(context.Background())
	}
	obj.SetCollectStatus(runtime.CollectStatusToString[runtime.Stopped])
}

// startCollect is readyCollect plus the bookkeeping of unreachable devices.
func (m *Manager) startCollect(obj runtime.Device) {
	if err := m.readyCollect(obj); err != nil {
		if errors.Is(err, constant.ErrConnectDevice) {
			m.heartBeatDevices.Store(obj.GetID(), obj)
			return
		}
		obj.SetCollectStatus(runtime.CollectStatusToString[runtime.Error])
		klog.V(2).InfoS("Failed to start process collect device data", "deviceId", obj.GetID(), "err", err)
	}
}

func (m *Manager) readyCollect(obj runtime.Device) error {
	newBroker, ok := generic.DeviceTypeBrokerMap[obj.GetDeviceType()]
	if !ok {
		return constant.ErrDeviceType
	}
	broker, results, err := newBroker(obj)
	if err != nil {
		switch {
		case errors.Is(err, constant.ErrConnectDevice):
			obj.SetCollectStatus(runtime.CollectStatusToString[runtime.Unconnected])
			return err
		case errors.Is(err, constant.ErrDeviceEmptyVariable):
			obj.SetCollectStatus(runtime.CollectStatusToString[runtime.EmptyVariable])
			return nil
		default:
			return err
		}
	}
	obj.SetCollectStatus(runtime.CollectStatusToString[runtime.Collecting])
	klog.V(2).InfoS("Succeed to collect data", "deviceId", obj.GetID())

	m.mu.Lock()
	m.brokers[obj.GetID()] = broker
	m.mu.Unlock()

	topic := obj.GetTopic()
	if len(topic) == 0 {
		topic = fmt.Sprintf("data/%s/v1/%s", m.gatewayMeta.ID, obj.GetID())
		obj.SetTopic(topic)
	}

	broker.Collect(context.Background())
	go m.consume(obj, broker, topic, results)
	return nil
}

func (m *Manager) current(id string, broker runtime.Broker) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brokers[id] == broker
}

func (m *Manager) consume(obj runtime.Device, broker runtime.Broker, topic string, results <-chan *runtime.ParseVariableResult) {
	for {
		select {
		case <-m.stopCh:
			return
		case pvr, ok := <-results:
			if !ok {
				klog.V(2).InfoS("Stopped to collect data", "deviceId", obj.GetID())
				return
			}
			// results still buffered after cancelCollect
			if !m.current(obj.GetID(), broker) {
				continue
			}
			if len(pvr.Err) > 0 {
				obj.SetCollectStatus(runtime.CollectStatusToString[runtime.CollectingError])
				klog.V(3).InfoS("Failed to collect data", "deviceId", obj.GetID(), "err", pvr.Err)
			} else {
				obj.SetCollectStatus(runtime.CollectStatusToString[runtime.Collecting])
			}
			if len(pvr.VariableSlice) > 0 {
				m.publish(topic, pvr.VariableSlice)
			}
		}
	}
}

func (m *Manager) publish(topic string, values []runtime.VariableValue) {
	pds := make([]runtime.PointData, 0, len(values))
	for _, value := range values {
		pds = append(pds, runtime.PointData{DataPointId: value.GetVariableName(), Value: value.GetValue()})
	}
	publishData := runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
		Timestamp: time.Now().UTC().Format(timestampLayout),
		Values:    pds,
	}}}}
	if m.mqttClient == nil {
		klog.V(5).InfoS("Collected", "topic", topic, "data", publishData)
		return
	}

	marshal, _ := json.Marshal(publishData)
	token := m.mqttClient.Publish(topic, mqttQos, false, marshal)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic, "data", publishData)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
	}
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	brokers := m.brokers
	m.brokers = make(map[string]runtime.Broker)
	m.mu.Unlock()
	for _, b := range brokers {
		b.Destroy(ctx)
	}

	if m.mqttClient != nil {
		m.mqttClient.Disconnect(2000)
	}
	var errs []string
	for i := len(m.closers); i > 0; i-- {
		lc := m.closers[i-1]
		if err := lc.Closer(ctx); err != nil {
			klog.V(2).InfoS("Failed to stop dependent service", "service", lc.Label)
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shutdown server: [%s]", strings.Join(errs, ","))
	}
	return nil
}

func (m *Manager) foldDevice(device runtime.Device) runtime.Device {
	return &runtime.DeviceMeta{
		PublishMeta: runtime.PublishMeta{Topic: device.GetTopic()},
		ObjectMeta: runtime.ObjectMeta{
			Name:    device.GetName(),
			ID:      device.GetID(),
			Version: device.GetVersion(),
			ModTime: device.GetModTime(),
		},
		DeviceModel:   device.GetDeviceModel(),
		DeviceCode:    device.GetDeviceCode(),
		DeviceType:    device.GetDeviceType(),
		CollectStatus: device.GetCollectStatus(),
	}
}

func (m *Manager) heartBeatDetection() {
	tick := time.NewTicker(heartBeatTimeInterval)
	defer tick.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-tick.C:
			m.heartBeatDevices.Range(func(key, value any) bool {
				d := value.(runtime.Device)
				if err := m.readyCollect(d); err == nil {
					m.heartBeatDevices.Delete(key)
				}
				return true
			})
		}
	}
}

func (m *Manager) listeningDeviceStatusCh() {
	for {
		select {
		case <-m.stopCh:
			return
		case ds := <-m.deviceStatusCh:
			d, exist := m.devices.Load(ds.id)
			if !exist {
				klog.V(2).InfoS("Failed to find device", "deviceId", ds.id)
				continue
			}
			m.switchDeviceStatus(d.(runtime.Device), ds.status)
		}
	}
}

func (m *Manager) switchDeviceStatus(device runtime.Device, status runtime.DeviceStatusCh) {
	cs := runtime.StringToCollectStatus[device.GetCollectStatus()]
	switch status {
	case runtime.Stop:
		if cs != runtime.Stopped {
			m.cancelCollect(device)
		}
	case runtime.Start:
		switch cs {
		case runtime.Collecting:
		case runtime.Stopped:
			m.startCollect(device)
		default:
			m.cancelCollect(device)
			m.startCollect(device)
		}
	case runtime.Restart:
		if cs != runtime.Stopped {
			m.cancelCollect(device)
		}
		m.startCollect(device)
	}
}
