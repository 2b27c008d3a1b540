package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/metrics"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/rpc"
	"github.com/roach88/cloudsync/internal/schedule"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/tracker"
)

// Scheduled job names.
const (
	jobFullSync   = "full-sync"
	jobFlavorSync = "flavor-sync"
)

// shutdownTimeout bounds the wait for running jobs on exit.
const shutdownTimeout = 10 * time.Second

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync service until interrupted",
		Long: `Run the sync service.

Subscribes to both clouds' notification buses, reconciles every event
against the mapping store and runs a full sync on connect and every
reconciler.full_sync_interval_seconds. When configured, it also runs the
periodic flavor import, serves Prometheus metrics on metrics.listen and the
driver service on driver.listen. SIGHUP runs every scheduled job at once.

Example:
  cloudsync run --config /etc/cloudsync/cloudsync.yaml
  cloudsync run -c cloudsync.yaml --db /var/lib/cloudsync/cloudsync.db -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(rootOpts, cmd)
		},
	}
	return cmd
}

func runService(opts *RootOptions, cmd *cobra.Command) error {
	logger := newLogger(opts, cmd.ErrOrStderr())
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err == nil {
		err = cfg.RequireEndpoints()
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	logger.Info("opening mapping store", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open mapping store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing mapping store", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	clouds, err := opts.connector()(ctx, cfg, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCloud, "failed to connect to clouds", err)
	}
	defer clouds.Close()

	collector, err := metrics.NewCollector(metrics.DefaultNamespace, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to create metrics collector", err)
	}
	stack, err := newSyncStack(cfg, st, clouds, collector, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to build reconciler", err)
	}

	for _, side := range sides {
		if clouds.Buses[side] == nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, fmt.Sprintf("no bus for %s", side), nil)
		}
	}

	sched := schedule.New(logger)
	err = sched.Add(jobFullSync, schedule.Every(cfg.FullSyncInterval()), func(context.Context) error {
		if !stack.rec.Enqueue(event.FullSync(resource.Local)) {
			return errors.New("full sync not admitted to the queue")
		}
		return nil
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to schedule full sync", err)
	}
	if cfg.FlavorSync.IntervalSeconds > 0 {
		syncer, err := newFlavorSyncer(cfg, clouds, collector, logger)
		if err == nil {
			err = sched.Add(jobFlavorSync, schedule.Every(cfg.FlavorSyncInterval()), func(ctx context.Context) error {
				_, err := syncer.Sync(ctx)
				return err
			})
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "failed to schedule flavor sync", err)
		}
	}

	var (
		d   *driver.Driver
		lis net.Listener
	)
	if cfg.Driver.Listen != "" {
		if d, err = newDriver(cfg, st, clouds, collector, logger); err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "failed to build driver", err)
		}
		if lis, err = net.Listen("tcp", cfg.Driver.Listen); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen for driver requests", err)
		}
	}

	var wg sync.WaitGroup
	errc := make(chan error, 4)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !isShutdown(err) {
				errc <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	for _, side := range sides {
		adapter, b := stack.adapters[side], clouds.Buses[side]
		start("bus "+string(side), func(ctx context.Context) error {
			return adapter.Subscribe(ctx, b, stack.rec.Enqueue)
		})
	}
	if cfg.Metrics.Listen != "" {
		start("metrics", func(ctx context.Context) error {
			return collector.Serve(ctx, cfg.Metrics.Listen)
		})
	}
	if d != nil {
		start("driver", func(ctx context.Context) error {
			return serveDriver(ctx, lis, d, logger)
		})
	}
	sched.Start()
	for _, job := range sched.Jobs() {
		logger.Info("job scheduled", "job", job.Name, "next", job.Next)
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	start("resync", func(ctx context.Context) error {
		triggerOnSignal(ctx, sched, hup, logger)
		return nil
	})

	f.VerboseLog("cloudsync running (store %s). Press Ctrl-C to stop.", cfg.Store.Path)
	runErr := stack.rec.Run(ctx)

	cancel()
	stack.queue.Close()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("scheduled jobs still running at exit", "error", err)
	}
	wg.Wait()
	close(errc)

	if runErr != nil && !isShutdown(runErr) {
		return f.Fail(ExitCommandError, ErrCodeStore, "reconciler stopped", runErr)
	}
	if err := <-errc; err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "service stopped", err)
	}
	logger.Info("cloudsync stopped gracefully")
	return nil
}

// inFlightReporter is implemented by driver.Driver.
type inFlightReporter interface {
	InFlight() []tracker.Operation
}

// serveDriver serves the driver RPC service on lis until ctx is done.
// Operations still awaited at shutdown are logged before the server drains.
func serveDriver(ctx context.Context, lis net.Listener, facade rpc.Facade, logger *slog.Logger) error {
	srv := rpc.NewServer(facade, logger)
	go func() {
		<-ctx.Done()
		if r, ok := facade.(inFlightReporter); ok {
			for _, op := range r.InFlight() {
				logger.Info("waiting for driver operation",
					"resource_id", op.ResourceID, "terminal", op.Terminal, "started_at", op.StartedAt)
			}
		}
		srv.GracefulStop()
	}()
	logger.Info("driver service listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("driver service: %w", err)
	}
	return nil
}

// triggerOnSignal runs every scheduled job each time sigs delivers, until
// ctx is done.
func triggerOnSignal(ctx context.Context, sched *schedule.Scheduler, sigs <-chan os.Signal, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			for _, job := range sched.Jobs() {
				logger.Info("running job on signal", "job", job.Name, "signal", sig.String())
				if err := sched.Trigger(job.Name); err != nil {
					logger.Error("job failed", "job", job.Name, "error", err)
				}
			}
		}
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
