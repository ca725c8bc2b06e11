package gocommand

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	devices "github.com/goliatone/go-devices"
	devicescommand "github.com/goliatone/go-devices/command"
	"github.com/goliatone/go-devices/core"
	devicesquery "github.com/goliatone/go-devices/query"
)

// RegisterFacade wires the four device commands and four queries into the
// adapter. On failure the adapter is closed.
func RegisterFacade(adapter *RegistryAdapter, facade *devices.Facade, runnerOpts ...runner.Option) error {
	if facade == nil {
		return fmt.Errorf("gocommand: facade is required")
	}
	if err := adapter.ready(); err != nil {
		return err
	}
	commands := facade.Commands()
	queries := facade.Queries()

	steps := []func() error{
		func() error {
			return RegisterAndSubscribe[devicescommand.ClaimDeviceMessage](adapter, commands.ClaimDevice, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribe[devicescommand.ReleaseDeviceMessage](adapter, commands.ReleaseDevice, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribe[devicescommand.ProvisionDeviceMessage](adapter, commands.ProvisionDevice, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribe[devicescommand.RotateClaimCodeMessage](adapter, commands.RotateClaimCode, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribeQuery[devicesquery.GetDeviceMessage, core.Device](adapter, queries.GetDevice, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribeQuery[devicesquery.GetUserMessage, core.User](adapter, queries.GetUser, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribeQuery[devicesquery.ListOwnedDevicesMessage, []core.Device](adapter, queries.ListOwnedDevices, runnerOpts...)
		},
		func() error {
			return RegisterAndSubscribeQuery[devicesquery.GetLinkStatusMessage, core.LinkStatus](adapter, queries.GetLinkStatus, runnerOpts...)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			adapter.Close()
			return err
		}
	}
	return nil
}
