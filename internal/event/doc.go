// Package event defines the reconciler's unit of work and the bounded queue
// that serializes bus deliveries and scheduler ticks onto a single consumer.
//
// Bus messages are classified by glob-matching their event type
// ("network.create.end", "port.delete", ...) and routed on the last
// significant segment.
package event
