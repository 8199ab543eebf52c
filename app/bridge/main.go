// The bridge exposes one signing device over HTTP. It claims the
// device (or hosts an in-process one), serializes command frames to
// it, keeps the audit trail and serves health and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mavryk-network/mvsign/audit"
	"github.com/mavryk-network/mvsign/health"
	"github.com/mavryk-network/mvsign/logging"
	"github.com/mavryk-network/mvsign/settings"
	"github.com/mavryk-network/mvsign/wallet"
	"github.com/mavryk-network/mvsign/watchdog"
)

const goroutineLimit = 512

func main() {
	root := &cli.Command{
		Name:  "mvsign-bridge",
		Usage: "expose a signing device over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the bridge config file",
				Sources: cli.EnvVars("MVSIGN_BRIDGE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			superviseCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("bridge failed", "error", err.Error())
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the bridge HTTP server",
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	log, envErr := logging.NewFromEnv()
	if envErr != nil {
		log.Warn("logging environment", "error", envErr.Error())
	}
	log = log.With("component", "bridge")

	store, err := settings.Open(cfg.SettingsPath, settings.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Watch(); err != nil {
		return err
	}

	trail, err := audit.Open(cfg.AuditPath, audit.WithLogger(log))
	if err != nil {
		return err
	}
	defer trail.Close()

	hook := trail.Hook()
	record := func(rec wallet.Record) {
		signOutcomes.WithLabelValues(rec.Outcome.String()).Inc()
		hook(rec)
	}

	var transport Transport
	var tracker *signTracker
	switch cfg.Transport {
	case transportLoopback:
		transport, err = openLoopback(cfg.Loopback, store, record, log)
	case transportUSB:
		transport, err = openUSB(cfg.USB, log)
		tracker = newSignTracker(record)
	}
	if err != nil {
		return err
	}
	defer transport.Close()

	monitor := health.NewMonitor(goroutineLimit)
	monitor.Register("audit", trail.Ping)
	monitor.Register("settings", store.Ping)
	monitor.Register("transport", transport.Ping)

	app := buildFiberApp(&server{
		log:       log,
		transport: transport,
		tracker:   tracker,
		store:     store,
		trail:     trail,
		monitor:   monitor,
	})

	errs := make(chan error, 1)
	go func() { errs <- app.Listen(cfg.Listen) }()
	log.Info("bridge listening", "addr", cfg.Listen, "transport", cfg.Transport)

	notifier := watchdog.New()
	defer notifier.Close()
	notifier.Ready()
	stopPinger := notifier.StartPinger(ctx)
	defer stopPinger()

	select {
	case err := <-errs:
		return fmt.Errorf("bridge: listen: %w", err)
	case <-ctx.Done():
		notifier.Stopping()
		log.Info("shutting down")
		return app.ShutdownWithTimeout(5 * time.Second)
	}
}

func superviseCommand() *cli.Command {
	return &cli.Command{
		Name:      "supervise",
		Usage:     "restart a child command until interrupted",
		ArgsUsage: "<command> [args...]",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "backoff", Value: time.Second, Usage: "initial restart delay"},
			&cli.DurationFlag{Name: "max-backoff", Value: time.Minute, Usage: "restart delay ceiling"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return errors.New("supervise: a child command is required")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, envErr := logging.NewFromEnv()
			if envErr != nil {
				log.Warn("logging environment", "error", envErr.Error())
			}

			sup := watchdog.NewSupervisor(args[0], args[1:],
				watchdog.WithLogger(log),
				watchdog.WithBackoff(cmd.Duration("backoff"), cmd.Duration("max-backoff")))

			if err := sup.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
