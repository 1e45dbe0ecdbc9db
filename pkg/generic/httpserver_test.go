package generic

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllowMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(AllowMethods(http.MethodGet, http.MethodPut))
	router.GET("/devices", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/devices", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/devices", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	for _, method := range []string{http.MethodDelete, http.MethodOptions} {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, "/devices", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "GET, PUT", w.Header().Get("Allow"))
	}
}
