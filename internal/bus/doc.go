// Package bus carries cloud notifications into the sync engine over Redis
// pub/sub.
package bus
