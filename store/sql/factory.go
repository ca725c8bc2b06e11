package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-devices/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithDeviceCache routes device reads through the given cache service.
func WithDeviceCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	deviceStore core.DeviceStore
	userStore   *UserStore
	claimStore  core.ClaimStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.deviceStore != nil && f.userStore != nil && f.claimStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DeviceStore() core.DeviceStore {
	if f == nil {
		return nil
	}
	return f.deviceStore
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) ClaimStore() core.ClaimStore {
	if f == nil {
		return nil
	}
	return f.claimStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	deviceStore, err := NewDeviceStore(f.db)
	if err != nil {
		return err
	}
	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	claimStore, err := NewClaimStore(f.db)
	if err != nil {
		return err
	}

	f.userStore = userStore
	if f.cache == nil {
		f.deviceStore = deviceStore
		f.claimStore = claimStore
		return nil
	}

	cachedDevices, err := NewCachedDeviceStore(deviceStore, f.cache)
	if err != nil {
		return err
	}
	cachedClaims, err := NewCachedClaimStore(claimStore, cachedDevices)
	if err != nil {
		return err
	}
	f.deviceStore = cachedDevices
	f.claimStore = cachedClaims
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
