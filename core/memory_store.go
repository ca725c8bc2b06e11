package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. Every write holds a single lock, so
// the claim check and the ownership writes are observed as one step.
type MemoryStore struct {
	mu      sync.Mutex
	devices map[string]Device
	users   map[string]User
	Now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: map[string]Device{},
		users:   map[string]User{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) GetDevice(_ context.Context, id string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[strings.TrimSpace(id)]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return copyDevice(device), nil
}

func (s *MemoryStore) CreateDevice(_ context.Context, in CreateDeviceInput) (Device, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.devices[id]; exists {
		return Device{}, ErrDeviceExists
	}
	device := Device{
		ID:        id,
		Label:     strings.TrimSpace(in.Label),
		ClaimCode: strings.TrimSpace(in.ClaimCode),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.devices[id] = device
	return copyDevice(device), nil
}

func (s *MemoryStore) ListDevicesByOwner(_ context.Context, ownerID string) ([]Device, error) {
	ownerID = strings.TrimSpace(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Device{}
	for _, device := range s.devices {
		if ownerID != "" && device.OwnerID == ownerID {
			out = append(out, copyDevice(device))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		left, right := claimedAtOrZero(out[i]), claimedAtOrZero(out[j])
		if left.Equal(right) {
			return out[i].ID < out[j].ID
		}
		return left.Before(right)
	})
	return out, nil
}

func (s *MemoryStore) ReplaceClaimCode(_ context.Context, deviceID string, code string) (Device, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[strings.TrimSpace(deviceID)]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	if device.Claimed() {
		return Device{}, ErrDeviceClaimed
	}
	device.ClaimCode = strings.TrimSpace(code)
	device.UpdatedAt = now
	s.devices[device.ID] = device
	return copyDevice(device), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) MergeUser(_ context.Context, in MergeUserInput) (User, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeUserLocked(in, now), nil
}

func (s *MemoryStore) ClaimDevice(_ context.Context, in ClaimDeviceInput) (ClaimOutcome, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[in.DeviceID]
	if !ok {
		return ClaimOutcome{}, ErrDeviceNotFound
	}
	if device.OwnerID != "" || !ClaimCodesEqual(device.ClaimCode, in.ClaimCode) {
		return ClaimOutcome{}, ErrClaimCodeMismatch
	}
	claimedAt := now
	device.OwnerID = ownerID
	device.ClaimedAt = &claimedAt
	device.ClaimCode = ""
	device.UpdatedAt = now
	s.devices[device.ID] = device

	merge := MergeUserInput{
		ID:              ownerID,
		CurrentDeviceID: stringPtr(device.ID),
	}
	if _, exists := s.users[ownerID]; !exists && strings.TrimSpace(in.OwnerName) != "" {
		merge.DisplayName = stringPtr(in.OwnerName)
	}
	user := s.mergeUserLocked(merge, now)
	return ClaimOutcome{Device: copyDevice(device), User: user}, nil
}

func (s *MemoryStore) ReleaseDevice(_ context.Context, in ReleaseDeviceInput) (Device, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[strings.TrimSpace(in.DeviceID)]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	if !device.Claimed() || device.OwnerID != ownerID {
		return Device{}, ErrDeviceNotOwned
	}
	device.OwnerID = ""
	device.ClaimedAt = nil
	device.ClaimCode = strings.TrimSpace(in.NextClaimCode)
	device.UpdatedAt = now
	s.devices[device.ID] = device

	if user, ok := s.users[ownerID]; ok && user.CurrentDeviceID == device.ID {
		user.CurrentDeviceID = ""
		user.UpdatedAt = now
		s.users[ownerID] = user
	}
	return copyDevice(device), nil
}

func (s *MemoryStore) mergeUserLocked(in MergeUserInput, now time.Time) User {
	id := strings.TrimSpace(in.ID)
	user, ok := s.users[id]
	if !ok {
		user = User{ID: id, CreatedAt: now}
	}
	if in.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	if in.CurrentDeviceID != nil {
		user.CurrentDeviceID = strings.TrimSpace(*in.CurrentDeviceID)
	}
	user.UpdatedAt = now
	s.users[id] = user
	return user
}

func (s *MemoryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func copyDevice(device Device) Device {
	device.ClaimedAt = cloneTime(device.ClaimedAt)
	return device
}

func claimedAtOrZero(device Device) time.Time {
	if device.ClaimedAt == nil {
		return time.Time{}
	}
	return *device.ClaimedAt
}
