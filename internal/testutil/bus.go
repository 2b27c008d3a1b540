package testutil

import (
	"context"

	"github.com/roach88/cloudsync/internal/event"
)

// ChannelBus is an in-memory endpoint.Bus. Each value sent on Reconnect
// simulates a successful (re)subscription.
type ChannelBus struct {
	Deliveries chan event.Envelope
	Reconnect  chan struct{}
}

// NewChannelBus creates a bus with buffered channels.
func NewChannelBus() *ChannelBus {
	return &ChannelBus{
		Deliveries: make(chan event.Envelope, 16),
		Reconnect:  make(chan struct{}, 4),
	}
}

// Run implements endpoint.Bus. It reports an initial connection immediately.
func (b *ChannelBus) Run(ctx context.Context, deliver func(event.Envelope), connected func()) error {
	connected()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-b.Deliveries:
			deliver(env)
		case <-b.Reconnect:
			connected()
		}
	}
}
