// Package hostapi describes the capabilities the fleet host hands to the form:
// a remote invocation primitive and a readiness registration.
package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kingrea/driver-activity/internal/activity"
)

// Remote operations and entity type names understood by the host.
const (
	MethodGet = "Get"
	MethodAdd = "Add"

	TypeDevice    = "Device"
	TypeLogRecord = "LogRecord"

	// DefaultDeviceSentinel asks the host for "the device this form runs on".
	DefaultDeviceSentinel = "device.id"
)

// ErrHostUnavailable is returned when no remote surface was provided.
var ErrHostUnavailable = errors.New("hostapi: host api unavailable")

// API invokes a named remote operation. result is decoded in place.
type API interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// Host bundles the API with the readiness hook and device sentinel.
type Host interface {
	// API returns nil when the remote surface is not available.
	API() API
	// Ready registers fn; the host invokes it once.
	Ready(fn func())
	DeviceSentinel() string
}

// Search narrows a Get to one entity id.
type Search struct {
	ID string `json:"id"`
}

// GetParams is the parameter object of a Get call.
type GetParams struct {
	TypeName string `json:"typeName"`
	Search   Search `json:"search"`
}

// AddParams is the parameter object of an Add call.
type AddParams struct {
	TypeName string             `json:"typeName"`
	Entity   activity.LogRecord `json:"entity"`
}

// GetDevices resolves the devices matching id.
func GetDevices(ctx context.Context, api API, id string) ([]activity.Device, error) {
	if api == nil {
		return nil, ErrHostUnavailable
	}
	var devices []activity.Device
	params := GetParams{TypeName: TypeDevice, Search: Search{ID: id}}
	if err := api.Call(ctx, MethodGet, params, &devices); err != nil {
		return nil, fmt.Errorf("hostapi: get device: %w", err)
	}
	return devices, nil
}

// AddLogRecord creates rec and returns the host's opaque confirmation.
func AddLogRecord(ctx context.Context, api API, rec activity.LogRecord) (json.RawMessage, error) {
	if api == nil {
		return nil, ErrHostUnavailable
	}
	var confirmation json.RawMessage
	params := AddParams{TypeName: TypeLogRecord, Entity: rec}
	if err := api.Call(ctx, MethodAdd, params, &confirmation); err != nil {
		return nil, fmt.Errorf("hostapi: add log record: %w", err)
	}
	return confirmation, nil
}
