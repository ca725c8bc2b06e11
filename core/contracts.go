package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (Device, error)
	CreateDevice(ctx context.Context, in CreateDeviceInput) (Device, error)
	ListDevicesByOwner(ctx context.Context, ownerID string) ([]Device, error)
	// ReplaceClaimCode fails with ErrDeviceClaimed when the device has an owner.
	ReplaceClaimCode(ctx context.Context, deviceID string, code string) (Device, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	MergeUser(ctx context.Context, in MergeUserInput) (User, error)
}

// ClaimStore applies ownership transitions atomically. ClaimDevice must
// compare the stored code and write the device and user records as one unit,
// so two concurrent claims with the same code cannot both succeed.
type ClaimStore interface {
	ClaimDevice(ctx context.Context, in ClaimDeviceInput) (ClaimOutcome, error)
	ReleaseDevice(ctx context.Context, in ReleaseDeviceInput) (Device, error)
}

type Store interface {
	DeviceStore
	UserStore
	ClaimStore
}

type StoreProvider interface {
	DeviceStore() DeviceStore
	UserStore() UserStore
	ClaimStore() ClaimStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// ClaimAttemptLimiter counts rejected claims per key inside a window.
type ClaimAttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type ClaimCodeGenerator interface {
	Generate(length int) (string, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ClaimService is the full operation surface exposed by Service.
type ClaimService interface {
	ClaimDevice(ctx context.Context, req ClaimRequest) (ClaimResult, error)
	ReleaseDevice(ctx context.Context, req ReleaseRequest) (ReleaseResult, error)
	ProvisionDevice(ctx context.Context, in ProvisionDeviceInput) (Device, error)
	RotateClaimCode(ctx context.Context, deviceID string) (Device, error)
	GetDevice(ctx context.Context, deviceID string) (Device, error)
	GetUser(ctx context.Context, uid string) (User, error)
	ListOwnedDevices(ctx context.Context, caller Caller) ([]Device, error)
	GetLinkStatus(ctx context.Context, deviceID string) (LinkStatus, error)
}
