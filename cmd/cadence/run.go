package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"cadence/internal/config"
	"cadence/internal/journal"
	"cadence/internal/runner"
	"cadence/internal/supervisor"
	logx "cadence/pkg/logx"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd(cfgPath *string) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled job until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, *cfgPath, !noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file when it changes")
	return cmd
}

func run(ctx context.Context, path string, watch bool) error {
	mgr := config.NewManager(path)
	cfg, err := mgr.Load(ctx)
	if err != nil {
		return err
	}

	logs, log := logx.NewService(cfg.Logging.Logx())
	defer logs.Close()
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	jc, err := journalConfig(cfg)
	if err != nil {
		return err
	}
	store, err := journal.Open(jc, log.With(logx.String("comp", "journal")))
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	r := runner.New(runner.Options{Log: log, Journal: store})
	if err := r.Apply(ctx, cfg); err != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		r.Stop(stopCtx)
		return err
	}
	log.Info("cadence started",
		logx.String("config", path),
		logx.Int("jobs", len(r.Snapshot())),
		logx.String("journal", jc.Driver),
	)
	notify(log, daemon.SdNotifyReady, status(r))

	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))))
	sub := mgr.Subscribe(8)
	defer mgr.Unsubscribe(sub)
	if watch {
		sup.GoRestart("config.watch", mgr.Watch)
	}
	sup.Go("config.reload", func(ctx context.Context) error {
		applied := cfg
		for {
			select {
			case <-ctx.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				applied = reload(ctx, log, logs, r, applied, next)
			}
		}
	})
	if every, err := daemon.SdWatchdogEnabled(false); err == nil && every > 0 {
		sup.Go("systemd.watchdog", func(ctx context.Context) error {
			t := time.NewTicker(every / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					notify(log, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	<-ctx.Done()
	notify(log, daemon.SdNotifyStopping, "STATUS=stopping")
	log.Info("shutting down")
	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := sup.Stop(stopCtx); err != nil {
		log.Warn("background tasks did not stop cleanly", logx.Err(err))
	}
	r.Stop(stopCtx)
	return nil
}

// reload applies a committed config and returns the one now in effect.
func reload(ctx context.Context, log logx.Logger, logs *logx.Service, r *runner.Runner, prev, next *config.Config) *config.Config {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		log.Debug("config reload received, but no effective changes detected")
		return prev
	}
	notify(log, daemon.SdNotifyReloading)
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	log.Info("config reloaded", fields...)

	for _, s := range sections {
		if s == "journal" {
			log.Warn("journal config changed; restart required for changes to take effect")
			break
		}
	}

	logs.Apply(next.Logging.Logx())
	if err := r.Apply(ctx, next); err != nil {
		log.Warn("some jobs could not be applied", logx.Err(err))
	}
	notify(log, daemon.SdNotifyReady, status(r))
	return next
}

// journalConfig maps the file section onto journal options. A missing
// section disables the journal.
func journalConfig(cfg *config.Config) (journal.Config, error) {
	if cfg.Journal == nil {
		return journal.Config{}, nil
	}
	busy, err := config.ParseDurationField("journal.busy_timeout", cfg.Journal.BusyTimeout)
	if err != nil {
		return journal.Config{}, err
	}
	return journal.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Journal.Driver)),
		Path:        strings.TrimSpace(cfg.Journal.Path),
		BusyTimeout: busy,
	}, nil
}

func status(r *runner.Runner) string {
	stats := r.Snapshot()
	failing := 0
	for _, s := range stats {
		if s.Failures > 0 {
			failing++
		}
	}
	return fmt.Sprintf("STATUS=%d jobs scheduled, %d with failures", len(stats), failing)
}

// notify reports to the service manager. It is a no-op outside systemd.
func notify(log logx.Logger, states ...string) {
	if _, err := daemon.SdNotify(false, strings.Join(states, "\n")); err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
	}
}
