package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-devices/core"
)

type MutatingService interface {
	ClaimDevice(ctx context.Context, req core.ClaimRequest) (core.ClaimResult, error)
	ReleaseDevice(ctx context.Context, req core.ReleaseRequest) (core.ReleaseResult, error)
	ProvisionDevice(ctx context.Context, in core.ProvisionDeviceInput) (core.Device, error)
	RotateClaimCode(ctx context.Context, deviceID string) (core.Device, error)
}

type ClaimDeviceCommand struct {
	service MutatingService
}

func NewClaimDeviceCommand(service MutatingService) *ClaimDeviceCommand {
	return &ClaimDeviceCommand{service: service}
}

func (c *ClaimDeviceCommand) Execute(ctx context.Context, msg ClaimDeviceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: claim service is required")
	}
	out, err := c.service.ClaimDevice(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReleaseDeviceCommand struct {
	service MutatingService
}

func NewReleaseDeviceCommand(service MutatingService) *ReleaseDeviceCommand {
	return &ReleaseDeviceCommand{service: service}
}

func (c *ReleaseDeviceCommand) Execute(ctx context.Context, msg ReleaseDeviceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: release service is required")
	}
	out, err := c.service.ReleaseDevice(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProvisionDeviceCommand struct {
	service MutatingService
}

func NewProvisionDeviceCommand(service MutatingService) *ProvisionDeviceCommand {
	return &ProvisionDeviceCommand{service: service}
}

func (c *ProvisionDeviceCommand) Execute(ctx context.Context, msg ProvisionDeviceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	out, err := c.service.ProvisionDevice(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RotateClaimCodeCommand struct {
	service MutatingService
}

func NewRotateClaimCodeCommand(service MutatingService) *RotateClaimCodeCommand {
	return &RotateClaimCodeCommand{service: service}
}

func (c *RotateClaimCodeCommand) Execute(ctx context.Context, msg RotateClaimCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: claim code service is required")
	}
	out, err := c.service.RotateClaimCode(ctx, msg.DeviceID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
