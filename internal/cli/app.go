package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/cloudsync/internal/bus"
	"github.com/roach88/cloudsync/internal/config"
	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/event"
	"github.com/roach88/cloudsync/internal/filter"
	"github.com/roach88/cloudsync/internal/flavorsync"
	"github.com/roach88/cloudsync/internal/metrics"
	"github.com/roach88/cloudsync/internal/openstack"
	"github.com/roach88/cloudsync/internal/reconciler"
	"github.com/roach88/cloudsync/internal/resource"
	"github.com/roach88/cloudsync/internal/store"
	"github.com/roach88/cloudsync/internal/tracker"
)

var sides = []resource.Side{resource.Local, resource.Remote}

// Clouds holds the clients of both endpoints.
type Clouds struct {
	Network map[resource.Side]endpoint.Client
	Buses   map[resource.Side]endpoint.Bus

	// FlavorSource lists REMOTE flavors; FlavorSink writes LOCAL ones.
	FlavorSource flavorsync.Source
	FlavorSink   flavorsync.Sink

	// Volumes and Compute are the REMOTE surfaces behind the driver.
	Volumes driver.VolumeAPI
	Compute driver.ComputeAPI

	closers []func() error
}

// Close releases bus connections.
func (c *Clouds) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// Connector builds the clients of both endpoints from cfg.
type Connector func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Clouds, error)

// ConnectOpenStack authenticates against both endpoints and opens a Redis
// subscription client per side.
func ConnectOpenStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Clouds, error) {
	clouds := &Clouds{
		Network: make(map[resource.Side]endpoint.Client),
		Buses:   make(map[resource.Side]endpoint.Bus),
	}
	for _, side := range sides {
		ep := cfg.Endpoints.Side(side)
		l := logger.With("side", string(side))

		clients, err := openstack.Connect(ctx, ep.OpenStack(cfg.CallTimeout()), l)
		if err != nil {
			clouds.Close()
			return nil, fmt.Errorf("%s endpoint: %w", side, err)
		}
		clouds.Network[side] = openstack.NewNetworkClient(clients.Network, l)

		redisOpts, err := redisOptions(ep.BusURL)
		if err != nil {
			clouds.Close()
			return nil, fmt.Errorf("%s bus_url: %w", side, err)
		}
		rc := redis.NewClient(redisOpts)
		clouds.closers = append(clouds.closers, rc.Close)
		clouds.Buses[side] = bus.NewRedisBus(rc, []string{ep.BusPattern()}, bus.WithLogger(l))

		flavors := openstack.NewFlavorClient(clients.Compute)
		if side == resource.Remote {
			clouds.FlavorSource = flavors
			clouds.Volumes = openstack.NewVolumeClient(clients.BlockStorage, clients.Compute)
			clouds.Compute = openstack.NewComputeClient(clients.Compute)
		} else {
			clouds.FlavorSink = flavors
		}
	}
	return clouds, nil
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(busURL string) (*redis.Options, error) {
	if strings.Contains(busURL, "://") {
		return redis.ParseURL(busURL)
	}
	return &redis.Options{Addr: busURL}, nil
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config and applies --db over store.path.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when parent
// is done.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// syncStack is the reconciler with its queue and adapters.
type syncStack struct {
	queue    *event.Queue
	adapters map[resource.Side]*endpoint.Adapter
	rec      *reconciler.Reconciler
}

// newSyncStack wires the reconciler over clouds. collector may be nil.
func newSyncStack(cfg *config.Config, st *store.Store, clouds *Clouds, collector *metrics.Collector, logger *slog.Logger) (*syncStack, error) {
	f, err := filter.New(cfg.FilterConfig(), logger)
	if err != nil {
		return nil, err
	}

	var queueOpts []event.QueueOption
	recOpts := []reconciler.Option{
		reconciler.WithLogger(logger),
		reconciler.WithPortPolicy(cfg.Reconciler.PortDeviceIDPrefix, cfg.Reconciler.PortDeviceOwner),
		reconciler.WithDeferral(cfg.Reconciler.DeferredRetryLimit, cfg.DeferredBackoff()),
	}
	if collector != nil {
		queueOpts = append(queueOpts, event.WithDropHook(collector.EventDropped))
		recOpts = append(recOpts, reconciler.WithRecorder(collector))
	}
	queue := event.NewQueue(cfg.Reconciler.EventQueueCapacity, queueOpts...)
	if collector != nil {
		if err := collector.WatchQueue(queue, metrics.DefaultNamespace); err != nil {
			return nil, err
		}
	}

	s := &syncStack{queue: queue, adapters: make(map[resource.Side]*endpoint.Adapter)}
	for _, side := range sides {
		client, ok := clouds.Network[side]
		if !ok {
			return nil, fmt.Errorf("no network client for %s", side)
		}
		s.adapters[side] = endpoint.New(side, client, f, st,
			endpoint.WithCallTimeout(cfg.CallTimeout()),
			endpoint.WithLogger(logger.With("side", string(side))),
		)
	}
	s.rec = reconciler.New(st, s.adapters[resource.Local], s.adapters[resource.Remote], f, queue, recOpts...)
	return s, nil
}

// drain processes queued events until the queue is empty.
func (s *syncStack) drain(ctx context.Context) error {
	for {
		e, ok := s.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := s.rec.Process(ctx, e); err != nil {
			return err
		}
	}
}

// newDriver wires the volume/compute facade. collector may be nil.
func newDriver(cfg *config.Config, st *store.Store, clouds *Clouds, collector *metrics.Collector, logger *slog.Logger) (*driver.Driver, error) {
	if clouds.Volumes == nil || clouds.Compute == nil {
		return nil, errors.New("no REMOTE volume or compute client")
	}
	trOpts := []tracker.Option{
		tracker.WithLogger(logger),
		tracker.WithDefaults(cfg.PollInterval(), cfg.OperationDeadline()),
		tracker.WithMaxPollErrors(cfg.Tracker.MaxPollErrors),
	}
	if collector != nil {
		trOpts = append(trOpts, tracker.WithRecorder(collector))
	}
	return driver.New(cfg.DriverConfig(), clouds.Volumes, clouds.Compute, st, st, tracker.New(trOpts...), driver.WithLogger(logger))
}

// newFlavorSyncer wires the flavor import. collector may be nil.
func newFlavorSyncer(cfg *config.Config, clouds *Clouds, collector *metrics.Collector, logger *slog.Logger) (*flavorsync.Syncer, error) {
	if clouds.FlavorSource == nil || clouds.FlavorSink == nil {
		return nil, errors.New("no flavor clients")
	}
	opts := []flavorsync.Option{flavorsync.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, flavorsync.WithRecorder(collector))
	}
	return flavorsync.New(cfg.FlavorSyncConfig(), clouds.FlavorSource, clouds.FlavorSink, opts...)
}
