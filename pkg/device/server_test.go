package device

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harnss7/pkg/apis"
)

const pressJSON = `{
	"name": "press",
	"deviceCode": "p1",
	"deviceType": "s7",
	"deviceModel": "s71200",
	"collectorCycle": 1,
	"address": {"location": "10.0.0.1", "option": {"port": 102}},
	"variables": [
		{"name": "speed", "address": "DB1.DBW0", "dataType": "int16", "accessMode": "rw"},
		{"name": "running", "address": "DB1.DBX2.0", "dataType": "bool"}
	]
}`

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	useFakeBrokers(t)
	router := gin.New()
	InstallHandler(router.Group("/api/v1"), newTestManager(t))
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) create() (string, string) {
	w := s.do(http.MethodPost, "/devices", pressJSON, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var d struct {
		ID string `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(s.t, "/api/v1/devices/"+d.ID, w.Header().Get(apis.Location))
	return d.ID, w.Header().Get(apis.ETag)
}

func TestCreateDeviceHandler(t *testing.T) {
	s := newTestServer(t)
	s.create()

	w := s.do(http.MethodPost, "/devices", `{"deviceType": "modbus"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/devices", `{"deviceType": `, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "10001")

	// binding failures are rendered as response errors
	w = s.do(http.MethodPost, "/devices", `{"deviceType": "s7", "name": "x"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":10012`)

	bad := strings.Replace(pressJSON, "DB1.DBW0", "P10", 1)
	w = s.do(http.MethodPost, "/devices", bad, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "variables[0].address")
}

func TestGetAndListDevicesHandler(t *testing.T) {
	s := newTestServer(t)
	id, eTag := s.create()

	w := s.do(http.MethodGet, "/devices/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, eTag, w.Header().Get(apis.ETag))
	assert.NotContains(t, w.Body.String(), "variables")

	w = s.do(http.MethodGet, "/devices/"+id+"?exploded=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dataType":"int16"`)

	w = s.do(http.MethodGet, "/devices/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	filter := url.QueryEscape(`{"name": {"startsWith": "pre"}}`)
	w = s.do(http.MethodGet, "/devices?filter="+filter, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Devices []map[string]interface{} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Devices, 1)
	assert.Equal(t, id, list.Devices[0]["id"])

	w = s.do(http.MethodGet, "/devices?filter=%7B", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateDeviceHandler(t *testing.T) {
	s := newTestServer(t)
	id, eTag := s.create()
	renamed := strings.Replace(pressJSON, `"press"`, `"press2"`, 1)

	w := s.do(http.MethodPut, "/devices/"+id, renamed, nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = s.do(http.MethodPut, "/devices/"+id, renamed, map[string]string{apis.IfMatch: "0"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = s.do(http.MethodPut, "/devices/missing", renamed, map[string]string{apis.IfMatch: eTag})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/devices/"+id, renamed, map[string]string{apis.IfMatch: eTag})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"press2"`)
	assert.NotEqual(t, eTag, w.Header().Get(apis.ETag))
}

func TestPatchDeviceHandler(t *testing.T) {
	s := newTestServer(t)
	id, eTag := s.create()

	w := s.do(http.MethodPatch, "/devices/"+id, `{"name": "press3"}`, map[string]string{apis.IfMatch: eTag})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	merge := map[string]string{"Content-Type": "application/merge-patch+json; charset=utf-8", apis.IfMatch: eTag}
	w = s.do(http.MethodPatch, "/devices/"+id, `{"name": "press3"}`, merge)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"press3"`)
	eTag = w.Header().Get(apis.ETag)

	patch := map[string]string{"Content-Type": "application/json-patch+json", apis.IfMatch: eTag}
	w = s.do(http.MethodPatch, "/devices/"+id, `[{"op": "replace", "path": "/variables/0/address", "value": "DB1.DBW4"}]`, patch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "DB1.DBW4")

	w = s.do(http.MethodPatch, "/devices/"+id, `[{"op": "remove", "path": "/nothing"}]`, patch)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDeviceHandler(t *testing.T) {
	s := newTestServer(t)
	id, eTag := s.create()

	w := s.do(http.MethodDelete, "/devices/"+id, "", nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = s.do(http.MethodDelete, "/devices/"+id, "", map[string]string{apis.IfMatch: "0"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = s.do(http.MethodDelete, "/devices/"+id, "", map[string]string{apis.IfMatch: eTag})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/devices/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeviceStatusAndActionHandlers(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.create()

	w := s.do(http.MethodPut, "/devices/"+id+"/status/restart", "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = s.do(http.MethodPut, "/devices/"+id+"/status/pause", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPut, "/devices/missing/status/stop", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/devices/"+id+"/action", `[{"name": "speed", "value": 12}]`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	w = s.do(http.MethodPut, "/devices/"+id+"/action", `[{"name": "running", "value": true}]`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "10004")
}

func TestPlcHandlers(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.create()

	w := s.do(http.MethodGet, "/devices/"+id+"/plc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"run"}`, w.Body.String())

	w = s.do(http.MethodPut, "/devices/"+id+"/plc", `{"operation": "stop"}`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = s.do(http.MethodGet, "/devices/"+id+"/plc", "", nil)
	assert.JSONEq(t, `{"status":"stop"}`, w.Body.String())

	w = s.do(http.MethodPut, "/devices/"+id+"/plc", `{"operation": "reset"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/devices/"+id+"/szl?id=0x0011", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":17`)
	w = s.do(http.MethodGet, "/devices/"+id+"/szl?id=zz", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/devices/missing/plc", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	offline := strings.Replace(pressJSON, "10.0.0.1", "offline", 1)
	w = s.do(http.MethodPost, "/devices", offline, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var d struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	w = s.do(http.MethodGet, "/devices/"+d.ID+"/plc", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "10007")
}
