// Package driver is the volume and compute facade a LOCAL host runtime calls
// to place its volumes and instances on the REMOTE cloud.
//
// Every create records the REMOTE id under MetadataKey on the LOCAL record
// before waiting, so a crash mid-wait never orphans the REMOTE resource.
// Waits are delegated to a tracker.Tracker. Instance networks are
// translated through the mapping store, with an LRU cache in front.
package driver
