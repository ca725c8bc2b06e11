package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ClaimDeviceMessage]     = (*ClaimDeviceCommand)(nil)
	_ gocmd.Commander[ReleaseDeviceMessage]   = (*ReleaseDeviceCommand)(nil)
	_ gocmd.Commander[ProvisionDeviceMessage] = (*ProvisionDeviceCommand)(nil)
	_ gocmd.Commander[RotateClaimCodeMessage] = (*RotateClaimCodeCommand)(nil)
)
