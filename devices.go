package devices

import "github.com/goliatone/go-devices/core"

type Config = core.Config

type ClaimConfig = core.ClaimConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Caller = core.Caller
type Device = core.Device
type User = core.User
type LinkStatus = core.LinkStatus

type ClaimRequest = core.ClaimRequest
type ClaimResult = core.ClaimResult
type ReleaseRequest = core.ReleaseRequest
type ReleaseResult = core.ReleaseResult
type ProvisionDeviceInput = core.ProvisionDeviceInput

type Store = core.Store
type DeviceStore = core.DeviceStore
type UserStore = core.UserStore
type ClaimStore = core.ClaimStore
type ClaimAttemptLimiter = core.ClaimAttemptLimiter
type ClaimCodeGenerator = core.ClaimCodeGenerator

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorMapper         = core.WithErrorMapper
	WithPersistenceClient   = core.WithPersistenceClient
	WithRepositoryFactory   = core.WithRepositoryFactory
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithStore               = core.WithStore
	WithDeviceStore         = core.WithDeviceStore
	WithUserStore           = core.WithUserStore
	WithClaimStore          = core.WithClaimStore
	WithClaimAttemptLimiter = core.WithClaimAttemptLimiter
	WithClaimCodeGenerator  = core.WithClaimCodeGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
