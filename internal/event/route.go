package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/cloudsync/internal/resource"
)

// ErrUnhandled is returned for event types no handler is registered for,
// such as "*.create.start" or unrelated services' notifications.
var ErrUnhandled = errors.New("unhandled event type")

// Envelope is the message shape delivered by each bus.
type Envelope struct {
	Origin    string          `json:"origin,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type route struct {
	pattern string
	typ     Type
}

// routes are matched in order. The action segment is the last significant
// segment of the event type; a trailing "end" is ignored.
var routes = []route{
	{"*.create", TypeCreate},
	{"*.create.end", TypeCreate},
	{"*.created", TypeCreate},
	{"*.update", TypeUpdate},
	{"*.update.end", TypeUpdate},
	{"*.updated", TypeUpdate},
	{"*.delete", TypeDelete},
	{"*.delete.end", TypeDelete},
	{"*.deleted", TypeDelete},
}

// Classify maps an event type string such as "network.create.end" to its
// event Type and resource Kind.
func Classify(eventType string) (Type, resource.Kind, error) {
	name := strings.ToLower(strings.TrimSpace(eventType))
	for _, r := range routes {
		ok, err := doublestar.Match(r.pattern, name)
		if err != nil {
			return 0, "", fmt.Errorf("route %q: %w", r.pattern, err)
		}
		if !ok {
			continue
		}
		kind, err := kindSegment(name)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %s", ErrUnhandled, eventType)
		}
		return r.typ, kind, nil
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnhandled, eventType)
}

// kindSegment returns the kind named by the segment before the action.
func kindSegment(name string) (resource.Kind, error) {
	segs := strings.Split(name, ".")
	if segs[len(segs)-1] == "end" {
		segs = segs[:len(segs)-1]
	}
	if len(segs) < 2 {
		return "", fmt.Errorf("no kind segment in %q", name)
	}
	return resource.ParseKind(segs[len(segs)-2])
}

// Decode turns a bus delivery into an Event for origin.
func Decode(origin resource.Side, env Envelope) (Event, error) {
	typ, kind, err := Classify(env.EventType)
	if err != nil {
		return Event{}, err
	}

	var raw map[string]any
	if len(env.Payload) > 0 {
		v, err := resource.ParseJSON(env.Payload)
		if err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		attrs, ok := v.(resource.Attrs)
		if !ok {
			return Event{}, fmt.Errorf("decode %s payload: expected object", env.EventType)
		}
		raw = resource.ToAny(attrs).(map[string]any)
	}

	attrs, err := objectAttrs(kind, raw)
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}

	if typ == TypeDelete {
		id := deletedID(kind, raw, attrs)
		if id == "" {
			return Event{}, fmt.Errorf("decode %s payload: no %s id", env.EventType, kind)
		}
		return Delete(origin, kind, id), nil
	}

	obj := resource.NewObject(kind, "", attrs)
	if obj.ID == "" {
		return Event{}, fmt.Errorf("decode %s payload: object has no id", env.EventType)
	}
	if typ == TypeCreate {
		return Create(origin, obj), nil
	}
	return Update(origin, obj), nil
}

// objectAttrs accepts the object either nested under its kind
// ({"network": {...}}) or as the payload itself.
func objectAttrs(kind resource.Kind, raw map[string]any) (resource.Attrs, error) {
	if nested, ok := raw[string(kind)].(map[string]any); ok {
		return resource.AttrsFromMap(nested)
	}
	if raw == nil {
		return resource.Attrs{}, nil
	}
	return resource.AttrsFromMap(raw)
}

func deletedID(kind resource.Kind, raw map[string]any, attrs resource.Attrs) string {
	if id, ok := raw[string(kind)+"_id"].(string); ok && id != "" {
		return id
	}
	return attrs.Str("id")
}
