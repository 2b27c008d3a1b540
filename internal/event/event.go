package event

import (
	"fmt"

	"github.com/roach88/cloudsync/internal/resource"
)

// Type distinguishes event kinds.
type Type int

const (
	// TypeCreate announces a new object on the origin side.
	TypeCreate Type = iota + 1
	// TypeUpdate announces changed attributes on the origin side.
	TypeUpdate
	// TypeDelete announces removal of an object on the origin side.
	TypeDelete
	// TypeFullSync requests a complete reconciliation pass.
	TypeFullSync
)

func (t Type) String() string {
	switch t {
	case TypeCreate:
		return "create"
	case TypeUpdate:
		return "update"
	case TypeDelete:
		return "delete"
	case TypeFullSync:
		return "full_sync"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Event is one unit of work for the reconciler.
type Event struct {
	// ID is a UUIDv7 assigned at enqueue time, for log correlation.
	ID string
	// Seq is the logical arrival order.
	Seq    int64
	Origin resource.Side
	Type   Type
	Kind   resource.Kind
	// Object carries the announced object for CREATE and UPDATE.
	Object resource.Object
	// ObjectID identifies the deleted object for DELETE.
	ObjectID string
	// Attempts counts how often the event was deferred and re-queued.
	Attempts int
}

// Create builds a CREATE event.
func Create(origin resource.Side, obj resource.Object) Event {
	return Event{Origin: origin, Type: TypeCreate, Kind: obj.Kind, Object: obj, ObjectID: obj.ID}
}

// Update builds an UPDATE event.
func Update(origin resource.Side, obj resource.Object) Event {
	return Event{Origin: origin, Type: TypeUpdate, Kind: obj.Kind, Object: obj, ObjectID: obj.ID}
}

// Delete builds a DELETE event.
func Delete(origin resource.Side, kind resource.Kind, id string) Event {
	return Event{Origin: origin, Type: TypeDelete, Kind: kind, ObjectID: id}
}

// FullSync builds a FULL_SYNC event.
func FullSync(origin resource.Side) Event {
	return Event{Origin: origin, Type: TypeFullSync}
}

// String renders a compact description for logs.
func (e Event) String() string {
	if e.Type == TypeFullSync {
		return fmt.Sprintf("%s full_sync", e.Origin)
	}
	return fmt.Sprintf("%s %s.%s %s", e.Origin, e.Kind, e.Type, e.ObjectID)
}
