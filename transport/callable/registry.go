package callable

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-devices/core"
)

const (
	FunctionClaimDevice   = "claimDevice"
	FunctionReleaseDevice = "releaseDevice"
	FunctionListMyDevices = "listMyDevices"
)

// Function handles one callable invocation. data is the raw "data" member
// of the request envelope and may be empty. Functions resolve the caller
// before they read data.
type Function func(ctx context.Context, caller core.Caller, data json.RawMessage) (any, error)

type ClaimService interface {
	ClaimDevice(ctx context.Context, req core.ClaimRequest) (core.ClaimResult, error)
	ReleaseDevice(ctx context.Context, req core.ReleaseRequest) (core.ReleaseResult, error)
	ListOwnedDevices(ctx context.Context, caller core.Caller) ([]core.Device, error)
}

type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewRegistry() *Registry {
	return &Registry{functions: map[string]Function{}}
}

// NewDefaultRegistry exposes the claim service functions.
func NewDefaultRegistry(service ClaimService) (*Registry, error) {
	if service == nil {
		return nil, fmt.Errorf("callable: claim service is required")
	}
	registry := NewRegistry()
	for name, fn := range map[string]Function{
		FunctionClaimDevice:   claimDeviceFunction(service),
		FunctionReleaseDevice: releaseDeviceFunction(service),
		FunctionListMyDevices: listMyDevicesFunction(service),
	} {
		if err := registry.Register(name, fn); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(name string, fn Function) error {
	if r == nil {
		return fmt.Errorf("callable: registry is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("callable: function name is required")
	}
	if fn == nil {
		return fmt.Errorf("callable: function %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("callable: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

func (r *Registry) Get(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[strings.TrimSpace(name)]
	return fn, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type claimDevicePayload struct {
	DeviceID  string `json:"deviceId"`
	ClaimCode string `json:"claimCode"`
}

type releaseDevicePayload struct {
	DeviceID string `json:"deviceId"`
}

type ownedDevice struct {
	DeviceID  string `json:"deviceId"`
	Label     string `json:"label,omitempty"`
	ClaimedAt string `json:"claimedAt,omitempty"`
}

type listMyDevicesResult struct {
	Devices []ownedDevice `json:"devices"`
}

func claimDeviceFunction(service ClaimService) Function {
	return func(ctx context.Context, caller core.Caller, data json.RawMessage) (any, error) {
		if !caller.Authenticated() {
			return service.ClaimDevice(ctx, core.ClaimRequest{Caller: caller})
		}
		var payload claimDevicePayload
		if err := decodeData(data, &payload); err != nil {
			return nil, err
		}
		return service.ClaimDevice(ctx, core.ClaimRequest{
			Caller:    caller,
			DeviceID:  payload.DeviceID,
			ClaimCode: payload.ClaimCode,
		})
	}
}

func releaseDeviceFunction(service ClaimService) Function {
	return func(ctx context.Context, caller core.Caller, data json.RawMessage) (any, error) {
		if !caller.Authenticated() {
			return service.ReleaseDevice(ctx, core.ReleaseRequest{Caller: caller})
		}
		var payload releaseDevicePayload
		if err := decodeData(data, &payload); err != nil {
			return nil, err
		}
		return service.ReleaseDevice(ctx, core.ReleaseRequest{
			Caller:   caller,
			DeviceID: payload.DeviceID,
		})
	}
}

func listMyDevicesFunction(service ClaimService) Function {
	return func(ctx context.Context, caller core.Caller, _ json.RawMessage) (any, error) {
		devices, err := service.ListOwnedDevices(ctx, caller)
		if err != nil {
			return nil, err
		}
		out := listMyDevicesResult{Devices: make([]ownedDevice, 0, len(devices))}
		for _, device := range devices {
			entry := ownedDevice{DeviceID: device.ID, Label: device.Label}
			if device.ClaimedAt != nil {
				entry.ClaimedAt = device.ClaimedAt.UTC().Format(time.RFC3339)
			}
			out.Devices = append(out.Devices, entry)
		}
		return out, nil
	}
}

func decodeData(data json.RawMessage, target any) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return malformedRequestError(err)
	}
	return nil
}
