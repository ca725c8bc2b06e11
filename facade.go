package devices

import (
	"fmt"

	devicescommand "github.com/goliatone/go-devices/command"
	devicesquery "github.com/goliatone/go-devices/query"
)

type CommandQueryService interface {
	devicescommand.MutatingService
	devicesquery.DeviceReader
	devicesquery.UserReader
}

type Commands struct {
	ClaimDevice     *devicescommand.ClaimDeviceCommand
	ReleaseDevice   *devicescommand.ReleaseDeviceCommand
	ProvisionDevice *devicescommand.ProvisionDeviceCommand
	RotateClaimCode *devicescommand.RotateClaimCodeCommand
}

type Queries struct {
	GetDevice        *devicesquery.GetDeviceQuery
	GetUser          *devicesquery.GetUserQuery
	ListOwnedDevices *devicesquery.ListOwnedDevicesQuery
	GetLinkStatus    *devicesquery.GetLinkStatusQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	userReader devicesquery.UserReader
}

// WithUserReader serves GetUser from a reader other than the service, such as
// a profile directory.
func WithUserReader(reader devicesquery.UserReader) FacadeOption {
	return func(options *facadeOptions) {
		options.userReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("devices: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	userReader := cfg.userReader
	if userReader == nil {
		userReader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ClaimDevice:     devicescommand.NewClaimDeviceCommand(service),
		ReleaseDevice:   devicescommand.NewReleaseDeviceCommand(service),
		ProvisionDevice: devicescommand.NewProvisionDeviceCommand(service),
		RotateClaimCode: devicescommand.NewRotateClaimCodeCommand(service),
	}
	facade.queries = Queries{
		GetDevice:        devicesquery.NewGetDeviceQuery(service),
		GetUser:          devicesquery.NewGetUserQuery(userReader),
		ListOwnedDevices: devicesquery.NewListOwnedDevicesQuery(service),
		GetLinkStatus:    devicesquery.NewGetLinkStatusQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
