package query

import (
	"strings"

	"github.com/goliatone/go-devices/core"
)

const (
	TypeGetDevice        = "devices.query.device.get"
	TypeGetUser          = "devices.query.user.get"
	TypeListOwnedDevices = "devices.query.device.list_owned"
	TypeGetLinkStatus    = "devices.query.link_status.get"
)

type GetDeviceMessage struct {
	DeviceID string
}

func (GetDeviceMessage) Type() string { return TypeGetDevice }

func (m GetDeviceMessage) Validate() error {
	if strings.TrimSpace(m.DeviceID) == "" {
		return queryValidationError("device_id", "device id is required")
	}
	return nil
}

type GetUserMessage struct {
	UID string
}

func (GetUserMessage) Type() string { return TypeGetUser }

func (m GetUserMessage) Validate() error {
	if strings.TrimSpace(m.UID) == "" {
		return queryValidationError("uid", "user id is required")
	}
	return nil
}

// ListOwnedDevicesMessage leaves the missing-caller check to the service.
type ListOwnedDevicesMessage struct {
	Caller core.Caller
}

func (ListOwnedDevicesMessage) Type() string { return TypeListOwnedDevices }

func (ListOwnedDevicesMessage) Validate() error { return nil }

type GetLinkStatusMessage struct {
	DeviceID string
}

func (GetLinkStatusMessage) Type() string { return TypeGetLinkStatus }

func (m GetLinkStatusMessage) Validate() error {
	if strings.TrimSpace(m.DeviceID) == "" {
		return queryValidationError("device_id", "device id is required")
	}
	return nil
}
