package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	devices "github.com/goliatone/go-devices"
	"github.com/goliatone/go-devices/adapters/gologger"
	"github.com/goliatone/go-devices/adapters/viperconfig"
	"github.com/goliatone/go-devices/core"
	devicemigrations "github.com/goliatone/go-devices/migrations"
	"github.com/goliatone/go-devices/transport/callable"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "devicesd",
		Usage: "Claim physical devices for signed-in users",
		Flags: loggingFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the callable claim API",
				Flags:  concatFlags(storeFlags, tokenFlags, serveFlags),
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "apply SQL migrations for the sqlite or postgres backend",
				Flags:  storeFlags,
				Action: runMigrate,
			},
			{
				Name:  "provision",
				Usage: "register a device and print its claim code",
				Flags: concatFlags(storeFlags, []cli.Flag{
					&cli.StringFlag{Name: "device-id", Usage: "device identifier (generated when empty)"},
					&cli.StringFlag{Name: "label", Usage: "human readable label"},
					&cli.StringFlag{Name: "claim-code", Usage: "claim code (generated when empty)"},
				}),
				Action: runProvision,
			},
			{
				Name:   "rotate-code",
				Usage:  "issue a new claim code for an unclaimed device",
				Flags:  concatFlags(storeFlags, []cli.Flag{deviceIDFlag}),
				Action: runRotateCode,
			},
			{
				Name:   "status",
				Usage:  "print the link status line a device would receive",
				Flags:  concatFlags(storeFlags, []cli.Flag{deviceIDFlag}),
				Action: runStatus,
			},
			{
				Name:  "issue-token",
				Usage: "sign a caller ID token for local testing",
				Flags: concatFlags(tokenFlags, []cli.Flag{
					&cli.StringFlag{Name: "uid", Usage: "caller user id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "caller display name"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour, Usage: "token lifetime"},
				}),
				Action: runIssueToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(cCtx *cli.Context) *slog.Logger {
	return gologger.SetupSlog(gologger.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: cCtx.String("log-service"),
		Version: Version,
	})
}

// newService opens the selected backend and builds the claim service. The
// returned backend must be closed by the caller.
func newService(cCtx *cli.Context, logger *slog.Logger) (*devices.Service, *backend, error) {
	store, err := openBackend(cCtx, logger)
	if err != nil {
		return nil, nil, err
	}

	runtime := core.Config{Claim: core.ClaimConfig{
		MaxFailedAttempts:    cCtx.Int("max-failed-attempts"),
		AttemptWindowSeconds: int(cCtx.Duration("attempt-window") / time.Second),
	}}
	opts := append([]core.Option{
		core.WithLoggerProvider(gologger.NewSlogProvider(logger)),
		core.WithConfigProvider(core.NewCfgxConfigProvider(viperconfig.New(viperconfig.WithConfigFile(cCtx.String("config"))))),
	}, store.options...)

	svc, err := devices.NewService(runtime, opts...)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, store, nil
}

func runServe(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)

	svc, store, err := newService(cCtx, logger)
	if err != nil {
		logger.Error("Failed to build claim service", "err", err)
		return err
	}
	defer store.Close()

	verifier, err := callable.NewTokenVerifier(cCtx.String("jwt-secret"), cCtx.String("jwt-issuer"), cCtx.String("jwt-audience"))
	if err != nil {
		return err
	}
	registry, err := callable.NewDefaultRegistry(svc)
	if err != nil {
		return err
	}
	srv, err := callable.NewServer(callable.ServerConfig{
		ListenAddr:               cCtx.String("listen-addr"),
		Log:                      logger,
		DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, registry, verifier)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	srv.RunInBackground()
	<-exit

	return srv.Shutdown(context.Background())
}

func runMigrate(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	kind := cCtx.String("store")
	dialect, err := devicemigrations.NormalizeDialect(kind)
	if err != nil {
		return err
	}
	client, err := openSQLClient(cCtx, dialect)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := devicemigrations.Apply(cCtx.Context, client, dialect); err != nil {
		logger.Error("Migration failed", "dialect", dialect, "err", err)
		return err
	}
	logger.Info("Migrations applied", "dialect", dialect)
	return nil
}

func runProvision(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	svc, store, err := newService(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	device, err := svc.ProvisionDevice(cCtx.Context, core.ProvisionDeviceInput{
		DeviceID:  cCtx.String("device-id"),
		Label:     cCtx.String("label"),
		ClaimCode: cCtx.String("claim-code"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "device_id=%s claim_code=%s\n", device.ID, device.ClaimCode)
	return nil
}

func runRotateCode(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	svc, store, err := newService(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	device, err := svc.RotateClaimCode(cCtx.Context, cCtx.String("device-id"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "device_id=%s claim_code=%s\n", device.ID, device.ClaimCode)
	return nil
}

func runStatus(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	svc, store, err := newService(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := svc.GetLinkStatus(cCtx.Context, cCtx.String("device-id"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, status.Line())
	return nil
}

func runIssueToken(cCtx *cli.Context) error {
	verifier, err := callable.NewTokenVerifier(cCtx.String("jwt-secret"), cCtx.String("jwt-issuer"), cCtx.String("jwt-audience"))
	if err != nil {
		return err
	}
	token, err := verifier.Issue(cCtx.String("uid"), cCtx.String("name"), cCtx.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, token)
	return nil
}
