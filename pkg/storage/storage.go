package storage

import (
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

type StoreGroup byte

const (
	StoreGroupDevice StoreGroup = iota
	StoreGroupGateway
)

var (
	StoreGroupToString = map[StoreGroup]string{
		StoreGroupDevice:  "device",
		StoreGroupGateway: "gateway",
	}
	StoreGroupFromString = map[string]StoreGroup{
		"device":  StoreGroupDevice,
		"gateway": StoreGroupGateway,
	}
	// StoreGroupDirs are the resource directories created for a group.
	StoreGroupDirs = map[StoreGroup][]string{
		StoreGroupDevice:  {Devices},
		StoreGroupGateway: {},
	}
)

// resources
const (
	// device
	Devices = "devices"
)

// DefaultStorePath is where the gateway keeps its state unless told otherwise.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		klog.ErrorS(err, "Failed to get home dir")
		return "./harnss7"
	}
	return filepath.Join(home, "harnss7")
}

type Getter interface {
	Get(key string) (interface{}, error)
}

type Lister interface {
	List(key string) (interface{}, error)
}

type Creater interface {
	Create(key string, obj interface{}) (interface{}, error)
}

type Updater interface {
	Update(key, version string, obj interface{}) (interface{}, error)
}

type Deleter interface {
	Delete(key, version string) (interface{}, error)
}

type Storage interface {
	Getter
	Lister
	Creater
	Updater
	Deleter
}

type FileInfo struct {
	Path    string
	ModTime time.Time
}
