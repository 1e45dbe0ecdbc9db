package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harnss7/pkg/apis"
	"harnss7/pkg/runtime"
)

func newTestClient(t *testing.T) *FsClient {
	fc, err := NewFsClient(t.TempDir(), StoreGroupDevice)
	require.NoError(t, err)
	return fc
}

func TestNewFsClient(t *testing.T) {
	root := t.TempDir()
	_, err := NewFsClient(root, StoreGroupDevice)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(root, "device", Devices))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewFsClient(filepath.Join(root, "missing"), StoreGroupDevice)
	assert.Error(t, err)
	_, err = NewFsClient(root, StoreGroup(9))
	assert.Error(t, err)
}

func TestFsClientCreateGet(t *testing.T) {
	fc := newTestClient(t)
	obj := &runtime.DeviceMeta{ObjectMeta: runtime.ObjectMeta{ID: "a", Name: "press", Version: "7"}}

	_, err := fc.Create("devices/s7.a", obj)
	require.NoError(t, err)
	_, err = fc.Create("devices/s7.a", obj)
	assert.True(t, os.IsExist(err))

	data, err := fc.Get("devices/s7.a")
	require.NoError(t, err)
	got := &runtime.DeviceMeta{}
	require.NoError(t, json.Unmarshal(data.([]byte), got))
	assert.Equal(t, "press", got.Name)

	_, err = fc.Get("devices/s7.b")
	assert.True(t, os.IsNotExist(err))

	files, err := fc.List(Devices)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFsClientUpdate(t *testing.T) {
	fc := newTestClient(t)
	obj := &runtime.DeviceMeta{ObjectMeta: runtime.ObjectMeta{ID: "a", Name: "press", Version: "7"}}
	_, err := fc.Create("devices/s7.a", obj)
	require.NoError(t, err)

	_, err = fc.Update("devices/s7.a", "8", obj)
	assert.ErrorIs(t, err, apis.ErrMismatch)

	obj.Name = "press2"
	updated, err := fc.Update("devices/s7.a", "7", obj)
	require.NoError(t, err)
	assert.NotEqual(t, "7", updated.(*runtime.DeviceMeta).Version)

	data, err := fc.Get("devices/s7.a")
	require.NoError(t, err)
	got := &runtime.DeviceMeta{}
	require.NoError(t, json.Unmarshal(data.([]byte), got))
	assert.Equal(t, "press2", got.Name)
	assert.Equal(t, updated.(*runtime.DeviceMeta).Version, got.Version)

	_, err = fc.Update("devices/s7.b", "1", obj)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFsClientDelete(t *testing.T) {
	fc := newTestClient(t)
	obj := &runtime.DeviceMeta{ObjectMeta: runtime.ObjectMeta{ID: "a", Version: "7"}}
	_, err := fc.Create("devices/s7.a", obj)
	require.NoError(t, err)

	_, err = fc.Delete("devices/s7.a", "1")
	assert.ErrorIs(t, err, apis.ErrMismatch)

	_, err = fc.Delete("devices/s7.a", "7")
	require.NoError(t, err)
	_, err = fc.Get("devices/s7.a")
	assert.True(t, os.IsNotExist(err))

	// without a version the delete does not care whether the file exists
	_, err = fc.Delete("devices/s7.a", "")
	assert.NoError(t, err)
}
