package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"harnss7/pkg/apis"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.GET("/gatewayMeta", getGatewayMeta(mgr))
	group.GET("/gatewayCpu", usage(func() (ResponseModel, error) {
		cpus, err := mgr.getGatewayCpu()
		return ResponseModel{Cpus: cpus}, err
	}))
	group.GET("/gatewayMem", usage(func() (ResponseModel, error) {
		m, err := mgr.getGatewayMem()
		return ResponseModel{Mem: m}, err
	}))
	group.GET("/gatewayDisk", usage(func() (ResponseModel, error) {
		disks, err := mgr.getGatewayDisk()
		return ResponseModel{Disks: disks}, err
	}))
}

func getGatewayMeta(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, _ := mgr.GetGatewayMeta()
		c.Header(apis.ETag, g.GetVersion())
		c.JSON(http.StatusOK, g)
	}
}

func usage(read func() (ResponseModel, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		rm, err := read()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, rm)
	}
}
