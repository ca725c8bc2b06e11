package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-devices/core"
)

var (
	_ gocmd.Querier[GetDeviceMessage, core.Device]          = (*GetDeviceQuery)(nil)
	_ gocmd.Querier[GetUserMessage, core.User]              = (*GetUserQuery)(nil)
	_ gocmd.Querier[ListOwnedDevicesMessage, []core.Device] = (*ListOwnedDevicesQuery)(nil)
	_ gocmd.Querier[GetLinkStatusMessage, core.LinkStatus]  = (*GetLinkStatusQuery)(nil)
)
