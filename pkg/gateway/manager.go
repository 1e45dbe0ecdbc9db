package gateway

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"harnss7/pkg/runtime"
	"harnss7/pkg/storage"
	"harnss7/pkg/utils/randutil"
	"harnss7/pkg/utils/uuidutil"
	"k8s.io/klog/v2"
)

type Option func(*Manager)

func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

type Manager struct {
	name        string
	gatewayMeta *GatewayMeta
	stopCh      <-chan struct{}
}

func NewGatewayManager(stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		name:        gatewayName,
		gatewayMeta: &GatewayMeta{},
		stopCh:      stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads the gateway identity below root, a new one is generated and
// stored on first start.
func (m *Manager) Init(root string) error {
	client, err := storage.NewFsClient(root, storage.StoreGroupGateway)
	if err != nil {
		return err
	}

	gd, err := client.Get(gatewayKey)
	if os.IsNotExist(err) {
		m.gatewayMeta = &GatewayMeta{
			ObjectMeta: runtime.ObjectMeta{
				Name:    m.name,
				ID:      uuidutil.UUID(),
				Version: strconv.FormatUint(randutil.Uint64n(), 10),
				ModTime: time.Now(),
			},
		}
		klog.V(3).InfoS("Gateway information not exist, created automatically", "gatewayId", m.gatewayMeta.ID)
		_, err = client.Create(gatewayKey, m.gatewayMeta)
		return err
	}
	if err != nil {
		return err
	}
	meta := &GatewayMeta{}
	if err = json.Unmarshal(gd.([]byte), meta); err != nil {
		klog.V(2).InfoS("Failed to unmarshal gateway information", "err", err)
		return err
	}
	m.gatewayMeta = meta
	return nil
}

func (m *Manager) GetGatewayMeta() (*GatewayMeta, error) {
	return m.gatewayMeta, nil
}
