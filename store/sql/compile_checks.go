package sqlstore

import "github.com/goliatone/go-devices/core"

var (
	_ core.DeviceStore            = (*DeviceStore)(nil)
	_ core.DeviceStore            = (*CachedDeviceStore)(nil)
	_ core.UserStore              = (*UserStore)(nil)
	_ core.ClaimStore             = (*ClaimStore)(nil)
	_ core.ClaimStore             = (*CachedClaimStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
