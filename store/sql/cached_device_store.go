package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-devices/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const deviceCacheKeyPrefix = "go-devices::device::v1"

// CachedDeviceStore serves device reads from a cache and drops the cached
// entry on every write it sees.
type CachedDeviceStore struct {
	base  core.DeviceStore
	cache repositorycache.CacheService
}

func NewCachedDeviceStore(base core.DeviceStore, cacheService repositorycache.CacheService) (*CachedDeviceStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base device store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: device cache service is required")
	}
	return &CachedDeviceStore{base: base, cache: cacheService}, nil
}

// DeviceCacheKey returns go-devices::device::v1::<device_id> with the id
// URL-path escaped.
func DeviceCacheKey(deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", fmt.Errorf("sqlstore: device id is required for cache key")
	}
	return deviceCacheKeyPrefix + "::" + url.PathEscape(deviceID), nil
}

func (s *CachedDeviceStore) GetDevice(ctx context.Context, id string) (core.Device, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Device{}, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Device{}, core.ErrDeviceNotFound
	}
	cacheKey, err := DeviceCacheKey(id)
	if err != nil {
		return core.Device{}, err
	}
	device, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Device, error) {
		return s.base.GetDevice(ctx, id)
	})
	if err != nil {
		return core.Device{}, err
	}
	return cloneDevice(device), nil
}

func (s *CachedDeviceStore) CreateDevice(ctx context.Context, in core.CreateDeviceInput) (core.Device, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Device{}, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	device, err := s.base.CreateDevice(ctx, in)
	if err != nil {
		return core.Device{}, err
	}
	if err := s.Invalidate(ctx, device.ID); err != nil {
		return core.Device{}, err
	}
	return device, nil
}

func (s *CachedDeviceStore) ListDevicesByOwner(ctx context.Context, ownerID string) ([]core.Device, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	return s.base.ListDevicesByOwner(ctx, ownerID)
}

func (s *CachedDeviceStore) ReplaceClaimCode(ctx context.Context, deviceID string, code string) (core.Device, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Device{}, fmt.Errorf("sqlstore: cached device store is not configured")
	}
	device, err := s.base.ReplaceClaimCode(ctx, deviceID, code)
	if err != nil {
		return core.Device{}, err
	}
	if err := s.Invalidate(ctx, deviceID); err != nil {
		return core.Device{}, err
	}
	return device, nil
}

func (s *CachedDeviceStore) Invalidate(ctx context.Context, deviceID string) error {
	if s == nil || s.cache == nil {
		return nil
	}
	cacheKey, err := DeviceCacheKey(deviceID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

// CachedClaimStore forwards ownership transitions and invalidates the device
// entry afterwards, including on rejected claims.
type CachedClaimStore struct {
	base    core.ClaimStore
	devices *CachedDeviceStore
}

func NewCachedClaimStore(base core.ClaimStore, devices *CachedDeviceStore) (*CachedClaimStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base claim store is required")
	}
	if devices == nil {
		return nil, fmt.Errorf("sqlstore: cached device store is required")
	}
	return &CachedClaimStore{base: base, devices: devices}, nil
}

func (s *CachedClaimStore) ClaimDevice(ctx context.Context, in core.ClaimDeviceInput) (core.ClaimOutcome, error) {
	if s == nil || s.base == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	outcome, err := s.base.ClaimDevice(ctx, in)
	if invalidateErr := s.invalidate(ctx, in.DeviceID); invalidateErr != nil && err == nil {
		return core.ClaimOutcome{}, invalidateErr
	}
	return outcome, err
}

func (s *CachedClaimStore) ReleaseDevice(ctx context.Context, in core.ReleaseDeviceInput) (core.Device, error) {
	if s == nil || s.base == nil {
		return core.Device{}, fmt.Errorf("sqlstore: cached claim store is not configured")
	}
	device, err := s.base.ReleaseDevice(ctx, in)
	if invalidateErr := s.invalidate(ctx, in.DeviceID); invalidateErr != nil && err == nil {
		return core.Device{}, invalidateErr
	}
	return device, err
}

func (s *CachedClaimStore) invalidate(ctx context.Context, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return nil
	}
	return s.devices.Invalidate(ctx, deviceID)
}

func cloneDevice(device core.Device) core.Device {
	device.ClaimedAt = utcTimePointer(device.ClaimedAt)
	return device
}
