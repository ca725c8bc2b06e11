package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	devicemigrations "github.com/goliatone/go-devices/migrations"
	"github.com/goliatone/go-devices/ratelimit"
	mongostore "github.com/goliatone/go-devices/store/mongo"
	sqlstore "github.com/goliatone/go-devices/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "devicesd" }

// backend holds the service options for the selected store plus the
// resources to release on exit.
type backend struct {
	options []core.Option
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(cCtx *cli.Context, log *slog.Logger) (*backend, error) {
	ctx := cCtx.Context
	out := &backend{}

	switch kind := strings.ToLower(strings.TrimSpace(cCtx.String("store"))); kind {
	case backendMemory:
		log.Warn("Using in-memory store, state is lost on exit")
	case backendSQLite, backendPostgres:
		client, err := openSQLClient(cCtx, kind)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, func() { _ = client.Close() })
		if cCtx.Bool("auto-migrate") {
			if err := devicemigrations.Apply(ctx, client, kind); err != nil {
				out.Close()
				return nil, err
			}
			log.Info("Applied SQL migrations", "dialect", kind)
		}
		factoryOpts := []sqlstore.FactoryOption{}
		if ttl := cCtx.Duration("device-cache-ttl"); ttl > 0 {
			cacheConfig := repositorycache.DefaultConfig()
			cacheConfig.TTL = ttl
			cacheService, err := repositorycache.NewCacheService(cacheConfig)
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("device cache: %w", err)
			}
			factoryOpts = append(factoryOpts, sqlstore.WithDeviceCache(cacheService))
		}
		out.options = append(out.options,
			core.WithPersistenceClient(client),
			core.WithRepositoryFactory(sqlstore.NewRepositoryFactory(factoryOpts...)),
		)
	case backendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cCtx.String("mongo-uri")))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		out.closers = append(out.closers, func() { _ = client.Disconnect(context.Background()) })
		store, err := mongostore.New(
			client.Database(cCtx.String("mongo-db")),
			mongostore.WithTransactions(cCtx.Bool("mongo-transactions")),
		)
		if err != nil {
			out.Close()
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			out.Close()
			return nil, err
		}
		out.options = append(out.options, core.WithStore(store))
	default:
		return nil, fmt.Errorf("unsupported store backend %q", kind)
	}

	if addr := strings.TrimSpace(cCtx.String("redis-addr")); addr != "" && cCtx.Int("max-failed-attempts") > 0 {
		client := redis.NewClient(&redis.Options{Addr: addr})
		out.closers = append(out.closers, func() { _ = client.Close() })
		limiter, err := ratelimit.NewRedisAttemptLimiter(client, cCtx.Int("max-failed-attempts"), cCtx.Duration("attempt-window"))
		if err != nil {
			out.Close()
			return nil, err
		}
		out.options = append(out.options, core.WithClaimAttemptLimiter(limiter))
		log.Info("Using redis claim attempt limiter", "addr", addr)
	}
	return out, nil
}

func openSQLClient(cCtx *cli.Context, kind string) (*persistence.Client, error) {
	driver := "sqlite3"
	if kind == backendPostgres {
		driver = "postgres"
	}
	dsn := cCtx.String("dsn")
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	cfg := persistenceConfig{driver: driver, server: dsn, debug: cCtx.Bool("log-debug")}

	var client *persistence.Client
	if kind == backendPostgres {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	} else {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}
	return client, nil
}
