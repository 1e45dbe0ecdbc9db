package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harnss7/pkg/apis"
)

func TestManagerInit(t *testing.T) {
	root := t.TempDir()
	stop := make(chan struct{})
	defer close(stop)

	m := NewGatewayManager(stop, WithName("line1"))
	require.NoError(t, m.Init(root))
	first, err := m.GetGatewayMeta()
	require.NoError(t, err)
	assert.Equal(t, "line1", first.Name)
	assert.NotEmpty(t, first.ID)

	// a restart keeps the identity
	again := NewGatewayManager(stop)
	require.NoError(t, again.Init(root))
	second, _ := again.GetGatewayMeta()
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "line1", second.Name)
}

func TestManagerInitMissingRoot(t *testing.T) {
	m := NewGatewayManager(nil)
	assert.Error(t, m.Init(t.TempDir()+"/missing"))
}

func TestGatewayHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewGatewayManager(nil)
	require.NoError(t, m.Init(t.TempDir()))

	router := gin.New()
	InstallHandler(router.Group("/api/v1"), m)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gatewayMeta", nil))
	require.Equal(t, http.StatusOK, w.Code)
	meta := &GatewayMeta{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), meta))
	assert.Equal(t, m.gatewayMeta.ID, meta.ID)
	assert.Equal(t, meta.Version, w.Header().Get(apis.ETag))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gatewayMem", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rm struct {
		Mem MemUsageInfo `json:"mem"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rm))
	assert.NotZero(t, rm.Mem.Total)
}
