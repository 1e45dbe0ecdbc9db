package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/mod/sumdb"
	"harnss7/pkg/apis"
	"harnss7/pkg/runtime"
	"harnss7/pkg/utils/fileutil"
	"harnss7/pkg/utils/randutil"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const removeRetryInterval = 10 * time.Millisecond

// FsClient keeps one json file per object under a group directory.
type FsClient struct {
	storePath string
}

var _ Storage = (*FsClient)(nil)

// NewFsClient prepares the group directory below root, root itself has to exist.
func NewFsClient(root string, sg StoreGroup) (*FsClient, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrap(err, "store path")
	}
	group, ok := StoreGroupToString[sg]
	if !ok {
		return nil, errors.Errorf("unsupported store group %d", sg)
	}

	fc := &FsClient{storePath: filepath.Join(root, group)}
	dirs := append([]string{""}, StoreGroupDirs[sg]...)
	for _, m := range dirs {
		p := filepath.Join(fc.storePath, m)
		_, err := os.Stat(p)
		if os.IsNotExist(err) {
			absPath, _ := filepath.Abs(p)
			klog.V(2).InfoS("Created", "path", absPath)
			if err = os.MkdirAll(p, 0711); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func (fc *FsClient) Create(key string, obj interface{}) (interface{}, error) {
	f, err := os.OpenFile(filepath.Join(fc.storePath, key), os.O_CREATE|os.O_RDWR|os.O_EXCL, 0640)
	if err != nil {
		klog.V(2).InfoS("Failed to create file", "err", err)
		return nil, err
	}
	defer f.Close()
	if err = json.NewEncoder(f).Encode(obj); err != nil {
		klog.V(2).InfoS("Failed to encode", "err", err)
		return nil, err
	}
	return obj, nil
}

func (fc *FsClient) Get(key string) (interface{}, error) {
	data, err := os.ReadFile(filepath.Join(fc.storePath, key))
	if err != nil {
		klog.V(2).InfoS("Failed to read", "err", err)
		return nil, err
	}
	return data, nil
}

func (fc *FsClient) List(key string) (interface{}, error) {
	var files []*FileInfo
	err := filepath.Walk(filepath.Join(fc.storePath, key), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, &FileInfo{Path: path, ModTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		klog.V(2).InfoS("Failed to list", "err", err)
		return nil, err
	}
	return files, nil
}

// openLocked opens key and takes the file lock, the caller releases both.
func (fc *FsClient) openLocked(key string, flag int) (*os.File, fileutil.Releaser, error) {
	f, err := os.OpenFile(filepath.Join(fc.storePath, key), flag, 0640)
	if err != nil {
		klog.V(2).InfoS("Failed to open file", "err", err)
		switch {
		case os.IsNotExist(err):
			return nil, nil, os.ErrNotExist
		case isEphemeralError(err):
			return nil, nil, sumdb.ErrWriteConflict
		default:
			return nil, nil, apis.ErrInternal
		}
	}
	lock, err := fileutil.NewLock(f)
	if err != nil {
		_ = f.Close()
		klog.V(2).InfoS("Failed to lock", "err", err)
		return nil, nil, sumdb.ErrWriteConflict
	}
	return f, lock, nil
}

func checkVersion(r io.Reader, version string) error {
	var old struct {
		runtime.ObjectMeta
	}
	if err := json.NewDecoder(r).Decode(&old); err != nil {
		klog.V(2).InfoS("Failed to unmarshal", "err", err)
		return apis.ErrInternal
	}
	if old.Version != version {
		return apis.ErrMismatch
	}
	return nil
}

func (fc *FsClient) Delete(key, version string) (interface{}, error) {
	// version is not required when cascading delete
	if len(version) == 0 {
		c, cancel := context.WithCancel(context.Background())
		wait.UntilWithContext(c, func(ctx context.Context) {
			if err := os.Remove(filepath.Join(fc.storePath, key)); !isEphemeralError(err) {
				if err != nil {
					klog.V(5).InfoS("Failed to remove file", "err", err)
				}
				cancel()
			}
		}, removeRetryInterval)
		return nil, nil
	}

	f, lock, err := fc.openLocked(key, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	err = checkVersion(f, version)
	_ = lock.Release()
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	if err = os.Remove(filepath.Join(fc.storePath, key)); err != nil {
		klog.V(2).InfoS("Failed to remove", "err", err)
		return nil, apis.ErrInternal
	}
	return nil, nil
}

// Update overwrites key when version still matches, the stored object gets
// a new, larger version.
func (fc *FsClient) Update(key, version string, obj interface{}) (interface{}, error) {
	f, lock, err := fc.openLocked(key, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer lock.Release()

	if err = checkVersion(f, version); err != nil {
		return nil, err
	}
	accessor, err := runtime.Accessor(obj)
	if err != nil {
		klog.V(2).InfoS("Failed to get accessor", "err", err)
		return nil, apis.ErrInternal
	}
	ver, _ := strconv.ParseUint(version, 10, 64)
	accessor.SetVersion(strconv.FormatUint(ver+1+uint64(randutil.Int63n(100)), 10))
	accessor.SetModTime(time.Now())

	if err = f.Truncate(0); err != nil {
		klog.V(2).InfoS("Failed to truncate", "err", err)
		return nil, apis.ErrInternal
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		klog.V(2).InfoS("Failed to seek", "err", err)
		return nil, apis.ErrInternal
	}
	if err = json.NewEncoder(f).Encode(obj); err != nil {
		klog.V(2).InfoS("Failed to marshal", "err", err)
		return nil, apis.ErrInternal
	}
	return obj, nil
}
