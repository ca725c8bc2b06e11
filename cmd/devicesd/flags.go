package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

var Version = "dev"

const (
	backendMemory   = "memory"
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
	backendMongo    = "mongo"
)

var loggingFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "log-json",
		Value:   false,
		Usage:   "log in JSON format",
		EnvVars: []string{"DEVICES_LOG_JSON"},
	},
	&cli.BoolFlag{
		Name:    "log-debug",
		Value:   false,
		Usage:   "log debug messages",
		EnvVars: []string{"DEVICES_LOG_DEBUG"},
	},
	&cli.StringFlag{
		Name:    "log-service",
		Value:   "devicesd",
		Usage:   "add 'service' tag to logs",
		EnvVars: []string{"DEVICES_LOG_SERVICE"},
	},
}

var storeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "optional yaml/json/toml file with service_name and claim.* settings",
		EnvVars: []string{"DEVICES_CONFIG_FILE"},
	},
	&cli.StringFlag{
		Name:    "store",
		Value:   backendMemory,
		Usage:   "storage backend: memory, sqlite, postgres or mongo",
		EnvVars: []string{"DEVICES_STORE"},
	},
	&cli.StringFlag{
		Name:    "dsn",
		Value:   "file:devices.db?cache=shared&_foreign_keys=on",
		Usage:   "database DSN for the sqlite and postgres backends",
		EnvVars: []string{"DEVICES_DSN"},
	},
	&cli.BoolFlag{
		Name:    "auto-migrate",
		Value:   false,
		Usage:   "apply SQL migrations on start",
		EnvVars: []string{"DEVICES_AUTO_MIGRATE"},
	},
	&cli.DurationFlag{
		Name:    "device-cache-ttl",
		Value:   0,
		Usage:   "cache device reads for this long (sql backends, 0 disables)",
		EnvVars: []string{"DEVICES_DEVICE_CACHE_TTL"},
	},
	&cli.StringFlag{
		Name:    "mongo-uri",
		Value:   "mongodb://127.0.0.1:27017",
		Usage:   "MongoDB connection URI",
		EnvVars: []string{"DEVICES_MONGO_URI"},
	},
	&cli.StringFlag{
		Name:    "mongo-db",
		Value:   "devices",
		Usage:   "MongoDB database name",
		EnvVars: []string{"DEVICES_MONGO_DB"},
	},
	&cli.BoolFlag{
		Name:    "mongo-transactions",
		Value:   false,
		Usage:   "run claims in multi-document transactions (requires a replica set)",
		EnvVars: []string{"DEVICES_MONGO_TRANSACTIONS"},
	},
	&cli.StringFlag{
		Name:    "redis-addr",
		Value:   "",
		Usage:   "redis address for shared claim attempt limiting (empty uses in-process limiting)",
		EnvVars: []string{"DEVICES_REDIS_ADDR"},
	},
	&cli.IntFlag{
		Name:    "max-failed-attempts",
		Value:   5,
		Usage:   "rejected claims allowed per caller inside the window",
		EnvVars: []string{"DEVICES_MAX_FAILED_ATTEMPTS"},
	},
	&cli.DurationFlag{
		Name:    "attempt-window",
		Value:   15 * time.Minute,
		Usage:   "window for counting rejected claims",
		EnvVars: []string{"DEVICES_ATTEMPT_WINDOW"},
	},
}

var tokenFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "jwt-secret",
		Usage:    "HMAC secret for caller ID tokens",
		EnvVars:  []string{"DEVICES_JWT_SECRET"},
		Required: true,
	},
	&cli.StringFlag{
		Name:    "jwt-issuer",
		Value:   "devicesd",
		Usage:   "expected token issuer",
		EnvVars: []string{"DEVICES_JWT_ISSUER"},
	},
	&cli.StringFlag{
		Name:    "jwt-audience",
		Value:   "devices-app",
		Usage:   "expected token audience",
		EnvVars: []string{"DEVICES_JWT_AUDIENCE"},
	},
}

var serveFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for the callable API",
		EnvVars: []string{"DEVICES_LISTEN_ADDR"},
	},
	&cli.Int64Flag{
		Name:    "drain-seconds",
		Value:   45,
		Usage:   "seconds to wait in drain HTTP request",
		EnvVars: []string{"DEVICES_DRAIN_SECONDS"},
	},
}

var deviceIDFlag = &cli.StringFlag{
	Name:     "device-id",
	Usage:    "device identifier",
	Required: true,
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	out := []cli.Flag{}
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}
