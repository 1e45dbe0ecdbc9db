package device

import (
	"time"

	"harnss7/pkg/protocol/s7"
	v1 "harnss7/pkg/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

var DeviceManagers = map[string]DeviceManager{
	v1.DeviceTypeS7: &s7.S7DeviceManager{},
}

var patchTypes = sets.NewString(string(types.JSONPatchType), string(types.MergePatchType))

const (
	maxJSONPatchOperations = 1000
	mqttTimeout            = 1 * time.Second
	mqttQos                = 1
	heartBeatTimeInterval  = 15 * time.Second
	plcTimeout             = 10 * time.Second
	timestampLayout        = "2006-01-02T15:04:05.000Z"
)
