package generic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"harnss7/pkg/runtime"
	"harnss7/pkg/storage"
	"k8s.io/klog/v2"
)

// Store persists devices of the registered types, one file per device named
// <deviceType>.<id>.
type Store struct {
	Group        string
	Resource     string
	ResourceType map[string]reflect.Type
	client       storage.Storage
}

func NewStore(root string, group string, resource string, resourceType map[string]runtime.Device) (*Store, error) {
	sg, ok := storage.StoreGroupFromString[group]
	if !ok {
		return nil, errors.Errorf("unknown store group %s", group)
	}
	client, err := storage.NewFsClient(root, sg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		Group:        group,
		Resource:     resource,
		ResourceType: make(map[string]reflect.Type, len(resourceType)),
		client:       client,
	}
	for dt, object := range resourceType {
		s.ResourceType[dt] = getTypeOfResource(object)
	}
	return s, nil
}

func (s *Store) key(obj runtime.Device) string {
	return filepath.Join(s.Resource, obj.GetDeviceType()+"."+obj.GetID())
}

func (s *Store) Create(obj runtime.Device) (runtime.Device, error) {
	saved, err := s.client.Create(s.key(obj), obj)
	if err != nil {
		return nil, err
	}
	return saved.(runtime.Device), nil
}

func (s *Store) Update(obj runtime.Device) (runtime.Device, error) {
	updated, err := s.client.Update(s.key(obj), obj.GetVersion(), obj)
	if err != nil {
		return nil, err
	}
	return updated.(runtime.Device), nil
}

func (s *Store) Delete(obj runtime.Device) (runtime.Device, error) {
	if _, err := s.client.Delete(s.key(obj), obj.GetVersion()); err != nil {
		return nil, err
	}
	return obj, nil
}

// LoadResource reads back every stored device. Files that cannot be decoded
// are logged and skipped.
func (s *Store) LoadResource() ([]runtime.Device, error) {
	objs, err := s.client.List(s.Resource)
	if err != nil {
		return nil, err
	}

	files, _ := objs.([]*storage.FileInfo)
	ret := make([]runtime.Device, 0, len(files))
	for _, file := range files {
		if obj, err := s.load(file.Path); err != nil {
			klog.V(2).InfoS("Failed to load", "file", file.Path, "resource", s.Resource, "err", err)
		} else {
			ret = append(ret, obj)
		}
	}
	return ret, nil
}

func (s *Store) load(path string) (runtime.Device, error) {
	fileName := filepath.Base(path)
	index := strings.LastIndex(fileName, ".")
	if index <= 0 {
		return nil, errors.Errorf("no device type in %s", fileName)
	}
	t, ok := s.ResourceType[fileName[:index]]
	if !ok {
		return nil, errors.Errorf("unknown device type %s", fileName[:index])
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obj := reflect.New(t).Interface().(runtime.Device)
	if err = json.NewDecoder(f).Decode(obj); err != nil {
		return nil, err
	}
	obj.IndexDevice()
	return obj, nil
}

func getTypeOfResource(obj runtime.Device) reflect.Type {
	t := reflect.TypeOf(obj)
	if t.Kind() != reflect.Ptr {
		panic("All types must be pointers to structs.")
	}
	t = t.Elem()
	if t.Kind() != reflect.Struct {
		panic("All types must be pointers to structs.")
	}
	return t
}
