package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	deviceStore       DeviceStore
	userStore         UserStore
	claimStore        ClaimStore
	attemptLimiter    ClaimAttemptLimiter
	codeGenerator     ClaimCodeGenerator
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	DeviceStore       DeviceStore
	UserStore         UserStore
	ClaimStore        ClaimStore
	AttemptLimiter    ClaimAttemptLimiter
	CodeGenerator     ClaimCodeGenerator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("devices", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("devices"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.codeGenerator == nil {
		builder.codeGenerator = RandomClaimCodeGenerator{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil && (builder.deviceStore == nil || builder.userStore == nil || builder.claimStore == nil) {
		var stores StoreProvider
		if factory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = direct
		}
		if stores != nil {
			if builder.deviceStore == nil {
				builder.deviceStore = stores.DeviceStore()
			}
			if builder.userStore == nil {
				builder.userStore = stores.UserStore()
			}
			if builder.claimStore == nil {
				builder.claimStore = stores.ClaimStore()
			}
		}
	}
	if builder.deviceStore == nil && builder.userStore == nil && builder.claimStore == nil {
		memory := NewMemoryStore()
		builder.deviceStore = memory
		builder.userStore = memory
		builder.claimStore = memory
	}
	if builder.deviceStore == nil || builder.userStore == nil || builder.claimStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: device, user and claim stores must all be configured"))
	}

	if builder.attemptLimiter == nil && finalConfig.Claim.LimitEnabled() {
		builder.attemptLimiter = NewMemoryAttemptLimiter(
			finalConfig.Claim.MaxFailedAttempts,
			finalConfig.Claim.AttemptWindow(),
		)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		deviceStore:       builder.deviceStore,
		userStore:         builder.userStore,
		claimStore:        builder.claimStore,
		attemptLimiter:    builder.attemptLimiter,
		codeGenerator:     builder.codeGenerator,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		DeviceStore:       s.deviceStore,
		UserStore:         s.userStore,
		ClaimStore:        s.claimStore,
		AttemptLimiter:    s.attemptLimiter,
		CodeGenerator:     s.codeGenerator,
	}
}

// ClaimDevice binds the device to the caller when the supplied claim code
// matches exactly. Checks run in order: identity, arguments, attempt budget,
// then the conditional claim in the store. Ids and codes are not normalized.
func (s *Service) ClaimDevice(ctx context.Context, req ClaimRequest) (result ClaimResult, err error) {
	startedAt := time.Now().UTC()
	deviceID := req.DeviceID
	fields := map[string]any{
		"device_id": deviceID,
		"uid":       strings.TrimSpace(req.Caller.UID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "claim_device", err, fields)
	}()

	if !req.Caller.Authenticated() {
		return ClaimResult{}, unauthenticatedError(messageUnauthenticated)
	}
	uid := strings.TrimSpace(req.Caller.UID)
	claimCode := req.ClaimCode
	if missing := missingClaimFields(strings.TrimSpace(deviceID), strings.TrimSpace(claimCode)); len(missing) > 0 {
		return ClaimResult{}, invalidArgumentError(messageMissingArguments, missing...)
	}

	limitKey := claimAttemptKey(uid)
	if s.attemptLimiter != nil {
		allowed, limitErr := s.attemptLimiter.Allow(ctx, limitKey)
		if limitErr != nil {
			return ClaimResult{}, s.mapError(limitErr)
		}
		if !allowed {
			return ClaimResult{}, resourceExhaustedError(messageTooManyAttempts)
		}
	}

	outcome, err := s.claimStore.ClaimDevice(ctx, ClaimDeviceInput{
		DeviceID:  deviceID,
		ClaimCode: claimCode,
		OwnerID:   uid,
		OwnerName: strings.TrimSpace(req.Caller.DisplayName),
	})
	if err != nil {
		if IsClaimRejection(err) && s.attemptLimiter != nil {
			failures, recordErr := s.attemptLimiter.RecordFailure(ctx, limitKey)
			if recordErr != nil {
				s.log(ctx, "error", "claim attempt record failed", map[string]any{
					"uid":   uid,
					"error": recordErr.Error(),
				})
			} else {
				fields["failed_attempts"] = failures
			}
		}
		return ClaimResult{}, s.mapError(err)
	}

	if s.attemptLimiter != nil {
		if resetErr := s.attemptLimiter.Reset(ctx, limitKey); resetErr != nil {
			s.log(ctx, "error", "claim attempt reset failed", map[string]any{
				"uid":   uid,
				"error": resetErr.Error(),
			})
		}
	}
	if outcome.Device.ClaimedAt != nil {
		fields["claimed_at"] = outcome.Device.ClaimedAt.UTC().Format(time.RFC3339)
	}
	return ClaimResult{OK: true, DeviceID: deviceID}, nil
}

// ReleaseDevice clears the caller's ownership and issues a fresh claim code.
// The device and its owner are checked before a code is generated; the store
// repeats the ownership check in its conditional write.
func (s *Service) ReleaseDevice(ctx context.Context, req ReleaseRequest) (result ReleaseResult, err error) {
	startedAt := time.Now().UTC()
	deviceID := strings.TrimSpace(req.DeviceID)
	fields := map[string]any{
		"device_id": deviceID,
		"uid":       strings.TrimSpace(req.Caller.UID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "release_device", err, fields)
	}()

	if !req.Caller.Authenticated() {
		return ReleaseResult{}, unauthenticatedError("You must sign in to release a device.")
	}
	if deviceID == "" {
		return ReleaseResult{}, invalidArgumentError("Device id is required.", "deviceId")
	}
	uid := strings.TrimSpace(req.Caller.UID)
	current, err := s.deviceStore.GetDevice(ctx, deviceID)
	if err != nil {
		return ReleaseResult{}, s.mapError(err)
	}
	if !current.Claimed() || current.OwnerID != uid {
		return ReleaseResult{}, s.mapError(ErrDeviceNotOwned)
	}
	nextCode, err := s.generateClaimCode()
	if err != nil {
		return ReleaseResult{}, err
	}
	if _, err = s.claimStore.ReleaseDevice(ctx, ReleaseDeviceInput{
		DeviceID:      deviceID,
		OwnerID:       uid,
		NextClaimCode: nextCode,
	}); err != nil {
		return ReleaseResult{}, s.mapError(err)
	}
	return ReleaseResult{OK: true, DeviceID: deviceID}, nil
}

// ProvisionDevice registers an unclaimed device. Empty ids and codes are
// generated.
func (s *Service) ProvisionDevice(ctx context.Context, in ProvisionDeviceInput) (device Device, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"device_id": strings.TrimSpace(in.DeviceID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "provision_device", err, fields)
	}()

	code := strings.TrimSpace(in.ClaimCode)
	if code == "" {
		code, err = s.generateClaimCode()
		if err != nil {
			return Device{}, err
		}
	}
	device, err = s.deviceStore.CreateDevice(ctx, CreateDeviceInput{
		ID:        strings.TrimSpace(in.DeviceID),
		Label:     strings.TrimSpace(in.Label),
		ClaimCode: code,
	})
	if err != nil {
		return Device{}, s.mapError(err)
	}
	fields["device_id"] = device.ID
	return device, nil
}

// RotateClaimCode replaces the claim code of an unclaimed device.
func (s *Service) RotateClaimCode(ctx context.Context, deviceID string) (device Device, err error) {
	startedAt := time.Now().UTC()
	deviceID = strings.TrimSpace(deviceID)
	fields := map[string]any{"device_id": deviceID}
	defer func() {
		s.observeOperation(ctx, startedAt, "rotate_claim_code", err, fields)
	}()

	if deviceID == "" {
		return Device{}, invalidArgumentError("Device id is required.", "deviceId")
	}
	current, err := s.deviceStore.GetDevice(ctx, deviceID)
	if err != nil {
		return Device{}, s.mapError(err)
	}
	if current.Claimed() {
		return Device{}, s.mapError(ErrDeviceClaimed)
	}
	code, err := s.generateClaimCode()
	if err != nil {
		return Device{}, err
	}
	device, err = s.deviceStore.ReplaceClaimCode(ctx, deviceID, code)
	if err != nil {
		return Device{}, s.mapError(err)
	}
	return device, nil
}

func (s *Service) generateClaimCode() (string, error) {
	code, err := s.codeGenerator.Generate(s.config.Claim.CodeLength)
	if err != nil {
		return "", s.mapError(goerrors.Wrap(err, goerrors.CategoryInternal, "claim code generation failed").
			WithTextCode(ServiceErrorInternal))
	}
	return code, nil
}

// GetDevice returns the device without its claim code.
func (s *Service) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Device{}, invalidArgumentError("Device id is required.", "deviceId")
	}
	device, err := s.deviceStore.GetDevice(ctx, deviceID)
	if err != nil {
		return Device{}, s.mapError(err)
	}
	return device.Redacted(), nil
}

func (s *Service) GetUser(ctx context.Context, uid string) (User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return User{}, invalidArgumentError("User id is required.", "uid")
	}
	user, err := s.userStore.GetUser(ctx, uid)
	if err != nil {
		return User{}, s.mapError(err)
	}
	return user, nil
}

func (s *Service) ListOwnedDevices(ctx context.Context, caller Caller) ([]Device, error) {
	if !caller.Authenticated() {
		return nil, unauthenticatedError("You must sign in to list devices.")
	}
	devices, err := s.deviceStore.ListDevicesByOwner(ctx, strings.TrimSpace(caller.UID))
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]Device, 0, len(devices))
	for _, device := range devices {
		out = append(out, device.Redacted())
	}
	return out, nil
}

// GetLinkStatus reports whether the device is owned and by whom. A missing
// owner record falls back to the owner id.
func (s *Service) GetLinkStatus(ctx context.Context, deviceID string) (LinkStatus, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return LinkStatus{}, invalidArgumentError("Device id is required.", "deviceId")
	}
	device, err := s.deviceStore.GetDevice(ctx, deviceID)
	if err != nil {
		return LinkStatus{}, s.mapError(err)
	}
	status := LinkStatus{DeviceID: device.ID}
	if !device.Claimed() {
		return status, nil
	}
	status.Linked = true
	status.OwnerID = device.OwnerID
	user, err := s.userStore.GetUser(ctx, device.OwnerID)
	if err == nil {
		status.OwnerName = strings.TrimSpace(user.DisplayName)
	} else if !isNotFound(err) {
		return LinkStatus{}, s.mapError(err)
	}
	return status, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func missingClaimFields(deviceID string, claimCode string) []string {
	missing := []string{}
	if deviceID == "" {
		missing = append(missing, "deviceId")
	}
	if claimCode == "" {
		missing = append(missing, "claimCode")
	}
	return missing
}

func claimAttemptKey(uid string) string {
	return "claim:" + uid
}
