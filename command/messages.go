package command

import (
	"strings"

	"github.com/goliatone/go-devices/core"
)

const (
	TypeClaimDevice     = "devices.command.claim"
	TypeReleaseDevice   = "devices.command.release"
	TypeProvisionDevice = "devices.command.provision"
	TypeRotateClaimCode = "devices.command.claim_code.rotate"
)

// ClaimDeviceMessage does not validate its caller or arguments: the service
// reports a missing identity before missing arguments.
type ClaimDeviceMessage struct {
	Request core.ClaimRequest
}

func (ClaimDeviceMessage) Type() string { return TypeClaimDevice }

func (ClaimDeviceMessage) Validate() error { return nil }

type ReleaseDeviceMessage struct {
	Request core.ReleaseRequest
}

func (ReleaseDeviceMessage) Type() string { return TypeReleaseDevice }

func (ReleaseDeviceMessage) Validate() error { return nil }

type ProvisionDeviceMessage struct {
	Input core.ProvisionDeviceInput
}

func (ProvisionDeviceMessage) Type() string { return TypeProvisionDevice }

func (m ProvisionDeviceMessage) Validate() error {
	if len(strings.TrimSpace(m.Input.DeviceID)) > 128 {
		return commandValidationError("device_id", "must be at most 128 characters")
	}
	if code := strings.TrimSpace(m.Input.ClaimCode); code != "" && len(code) < 4 {
		return commandValidationError("claim_code", "must be at least 4 characters")
	}
	return nil
}

type RotateClaimCodeMessage struct {
	DeviceID string
}

func (RotateClaimCodeMessage) Type() string { return TypeRotateClaimCode }

func (m RotateClaimCodeMessage) Validate() error {
	if strings.TrimSpace(m.DeviceID) == "" {
		return commandValidationError("device_id", "device id is required")
	}
	return nil
}
