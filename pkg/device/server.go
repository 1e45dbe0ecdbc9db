package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gin-gonic/gin"
	"harnss7/pkg/apis"
	"harnss7/pkg/apis/response"
	"harnss7/pkg/generic"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/runtime"
	v1 "harnss7/pkg/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.POST("/devices", createDevice(mgr))
	group.DELETE("/devices/:id", deleteDevice(mgr))
	group.PATCH("/devices/:id", patchDeviceById(mgr))
	group.PUT("/devices/:id", updateDeviceById(mgr))
	group.GET("/devices", listDevices(mgr))
	group.GET("/devices/:id", getDeviceById(mgr))
	group.PUT("/devices/:id/status/:status", switchDeviceStatusById(mgr))
	group.PUT("/devices/:id/action", controlDeviceById(mgr))
	group.GET("/devices/:id/plc", getPlcStatusById(mgr))
	group.PUT("/devices/:id/plc", controlPlcById(mgr))
	group.GET("/devices/:id/szl", readSZLById(mgr))
}

func createDevice(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(2).InfoS("Failed to get request body", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody))
			return
		}

		var target struct {
			DeviceType string `json:"deviceType"`
		}
		if err = json.Unmarshal(bodyBytes, &target); err != nil {
			klog.V(2).InfoS("Failed to parse device type", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		newObject, ok := generic.DeviceTypeMap[target.DeviceType]
		if !ok {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrDeviceOperatorUnSupported(target.DeviceType)))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		object := newObject()
		if err = c.ShouldBindJSON(object); err != nil {
			klog.V(2).InfoS("Failed to parse device", "err", err)
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}
		d, err := mgr.CreateDevice(object)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}

		c.Header(apis.ETag, d.GetVersion())
		c.Header(apis.Location, fmt.Sprintf("%s/%s", c.Request.URL.Path, d.GetID()))
		c.JSON(http.StatusCreated, d)
	}
}

func deleteDevice(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}
		device, err := mgr.DeleteDevice(c.Param("id"), eTag)
		if err != nil {
			writeUpdateError(c, err)
			return
		}
		c.JSON(http.StatusOK, device)
	}
}

func writeUpdateError(c *gin.Context, err error) {
	switch {
	case os.IsNotExist(err):
		c.Status(http.StatusNotFound)
	case errors.Is(err, apis.ErrMismatch):
		c.Status(http.StatusPreconditionFailed)
	case errors.Is(err, apis.ErrInternal):
		c.Status(http.StatusInternalServerError)
	default:
		c.JSON(http.StatusBadRequest, response.ToMultiError(err))
	}
}

func patchDeviceById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		contentType := c.GetHeader("Content-Type")
		// Remove "; charset=" if included in header.
		if idx := strings.Index(contentType, ";"); idx > 0 {
			contentType = contentType[:idx]
		}
		if !patchTypes.Has(contentType) {
			c.Status(http.StatusUnsupportedMediaType)
			return
		}

		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}

		patchBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(3).InfoS("Failed to read", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		id := c.Param("id")
		old, err := mgr.GetDeviceById(id, true)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}

		versionedJS, err := json.Marshal(old)
		if err != nil {
			klog.V(3).InfoS("Failed to marshal", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		patchedJS, err := applyJSPatch(types.PatchType(contentType), patchBytes, versionedJS)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}

		newObj := generic.DeviceTypeMap[old.GetDeviceType()]()
		if err = json.Unmarshal(patchedJS, newObj); err != nil {
			klog.V(3).InfoS("Failed to decode", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		updated, err := mgr.UpdateDeviceById(id, eTag, newObj)
		if err != nil {
			writeUpdateError(c, err)
			return
		}
		c.Header(apis.ETag, updated.GetVersion())
		c.JSON(http.StatusOK, updated)
	}
}

func updateDeviceById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}

		id := c.Param("id")
		old, err := mgr.GetDeviceById(id, true)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}

		newObj := generic.DeviceTypeMap[old.GetDeviceType()]()
		if err = c.ShouldBindJSON(newObj); err != nil {
			klog.V(3).InfoS("Failed to decode", "err", err)
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}

		updated, err := mgr.UpdateDeviceById(id, eTag, newObj)
		if err != nil {
			writeUpdateError(c, err)
			return
		}
		c.Header(apis.ETag, updated.GetVersion())
		c.JSON(http.StatusOK, updated)
	}
}

func listDevices(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		filter := runtime.DeviceFilter{}
		if v := query.Get(apis.Filter); len(v) > 0 {
			if err := json.Unmarshal([]byte(v), &filter); err != nil {
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
		}
		exploded, _ := strconv.ParseBool(query.Get("exploded"))
		rds, _ := mgr.ListDevices(&filter, exploded)

		c.JSON(http.StatusOK, &runtime.ResponseModel{Devices: rds})
	}
}

func getDeviceById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		exploded, _ := strconv.ParseBool(c.Query("exploded"))
		rd, err := mgr.GetDeviceById(c.Param("id"), exploded)
		if err != nil {
			if os.IsNotExist(err) {
				c.Status(http.StatusNotFound)
			} else {
				c.Status(http.StatusInternalServerError)
			}
			return
		}

		c.Header(apis.ETag, rd.GetVersion())
		c.JSON(http.StatusOK, rd)
	}
}

func switchDeviceStatusById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := mgr.SwitchDeviceStatus(c.Param("id"), c.Param("status")); err != nil {
			if os.IsNotExist(err) {
				c.Status(http.StatusNotFound)
			} else {
				c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			}
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func controlDeviceById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		var actions v1.Actions
		if err := c.ShouldBindJSON(&actions); err != nil {
			klog.V(3).InfoS("Failed to parse action", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), plcTimeout)
		defer cancel()
		if err := mgr.DeliverAction(ctx, c.Param("id"), actions); err != nil {
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}
		c.Status(http.StatusAccepted)
	}
}

type plcStatus struct {
	Status s7runtime.CpuStatus `json:"status"`
}

// writePlcError maps a failed PLC request, device lookups give 404 and
// everything the PLC itself rejects gives 502.
func writePlcError(c *gin.Context, operation string, err error) {
	switch {
	case os.IsNotExist(err):
		c.Status(http.StatusNotFound)
	case response.IsResponseError(err):
		c.JSON(http.StatusConflict, response.NewMultiError(err))
	default:
		c.JSON(http.StatusBadGateway, response.NewMultiError(response.ErrPlcOperation(operation, err)))
	}
}

func getPlcStatusById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), plcTimeout)
		defer cancel()
		status, err := mgr.PlcStatus(ctx, c.Param("id"))
		if err != nil {
			writePlcError(c, "status", err)
			return
		}
		c.JSON(http.StatusOK, plcStatus{Status: status})
	}
}

func controlPlcById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		var op v1.PlcOperation
		if err := c.ShouldBindJSON(&op); err != nil {
			c.JSON(http.StatusBadRequest, response.ToMultiError(err))
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), plcTimeout)
		defer cancel()
		if err := mgr.PlcControl(ctx, c.Param("id"), op.Operation); err != nil {
			writePlcError(c, op.Operation, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func readSZLById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Query("id"), 0, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestInvalid(err)))
			return
		}
		index, err := strconv.ParseUint(c.DefaultQuery("index", "0"), 0, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestInvalid(err)))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), plcTimeout)
		defer cancel()
		szl, err := mgr.ReadSZL(ctx, c.Param("id"), uint16(id), uint16(index))
		if err != nil {
			writePlcError(c, "szl", err)
			return
		}
		c.JSON(http.StatusOK, szl)
	}
}

func applyJSPatch(patchType types.PatchType, patchBytes, versionedJS []byte) (patchedJS []byte, err error) {
	switch patchType {
	case types.JSONPatchType:
		patchObj, err := jsonpatch.DecodePatch(patchBytes)
		if err != nil {
			return nil, response.ErrMalformedJSON
		}
		if len(patchObj) > maxJSONPatchOperations {
			klog.V(3).InfoS("Too many json patch operations", "count", len(patchObj))
			return nil, response.ErrTooManyJsonPatchOperations(len(patchObj), maxJSONPatchOperations)
		}
		patchedJS, err := patchObj.Apply(versionedJS)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, nil
	case types.MergePatchType:
		patchedJS, err = jsonpatch.MergePatch(versionedJS, patchBytes)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json merge patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, nil
	default:
		return nil, fmt.Errorf("unknown Content-Type header for patch: %v", patchType)
	}
}
