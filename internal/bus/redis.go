package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/cloudsync/internal/endpoint"
	"github.com/roach88/cloudsync/internal/event"
)

// Defaults for the reconnect backoff.
const (
	DefaultReconnectInitial = 500 * time.Millisecond
	DefaultReconnectMax     = 30 * time.Second
)

// subscription is the part of *redis.PubSub the bus reads from.
type subscription interface {
	Receive(ctx context.Context) (any, error)
	Close() error
}

// RedisBus receives one cloud's notifications from Redis pub/sub. Channels
// are glob patterns (PSUBSCRIBE). Every message payload is a JSON
// event.Envelope.
//
// Run reconnects with exponential backoff after any receive error and
// reports each successful subscription through connected, which the
// endpoint adapter turns into a FULL_SYNC.
type RedisBus struct {
	patterns  []string
	subscribe func(ctx context.Context, patterns ...string) subscription
	logger    *slog.Logger
	initial   time.Duration
	max       time.Duration
}

var _ endpoint.Bus = (*RedisBus)(nil)

// Option configures a RedisBus.
type Option func(*RedisBus)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *RedisBus) { b.logger = l }
}

// WithReconnectBackoff sets the first and the largest reconnect delay.
func WithReconnectBackoff(initial, max time.Duration) Option {
	return func(b *RedisBus) {
		if initial > 0 {
			b.initial = initial
		}
		if max > 0 {
			b.max = max
		}
	}
}

// NewRedisBus creates a bus reading patterns through client.
func NewRedisBus(client redis.UniversalClient, patterns []string, opts ...Option) *RedisBus {
	b := &RedisBus{
		patterns: patterns,
		subscribe: func(ctx context.Context, patterns ...string) subscription {
			return client.PSubscribe(ctx, patterns...)
		},
		logger:  slog.Default(),
		initial: DefaultReconnectInitial,
		max:     DefaultReconnectMax,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run implements endpoint.Bus. It returns ctx.Err() once ctx is done.
func (b *RedisBus) Run(ctx context.Context, deliver func(event.Envelope), connected func()) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.initial
	bo.MaxInterval = b.max
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		sub := b.subscribe(ctx, b.patterns...)
		err := b.consume(ctx, sub, deliver, func() {
			bo.Reset()
			connected()
		})
		if cerr := sub.Close(); cerr != nil {
			b.logger.Debug("closing subscription", "error", cerr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		b.logger.Warn("bus disconnected, reconnecting", "patterns", b.patterns, "in", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// consume reads one subscription until it fails.
func (b *RedisBus) consume(ctx context.Context, sub subscription, deliver func(event.Envelope), connected func()) error {
	announced := false
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			if !announced && (m.Kind == "psubscribe" || m.Kind == "subscribe") {
				announced = true
				b.logger.Info("bus subscribed", "channel", m.Channel)
				connected()
			}
		case *redis.Message:
			var env event.Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.logger.Warn("dropping undecodable notification", "channel", m.Channel, "error", err)
				continue
			}
			deliver(env)
		case *redis.Pong:
		default:
			b.logger.Debug("ignoring pub/sub message", "type", m)
		}
	}
}
