// Package endpoint provides the per-side adapter the reconciler uses to read
// and mutate one cloud: list, get, create, update, delete and bus
// subscription.
//
// The adapter owns the cross-cloud concerns of a call. It restricts
// attributes to the kind's field tables, translates parent references
// through the mapping store, filters unmappable objects from listings and
// bounds every call with a timeout. A concrete Client only speaks to its
// own cloud.
package endpoint
