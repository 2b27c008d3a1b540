// Package schedule fires the periodic producers: the full-sync tick that
// enqueues FULL_SYNC for both clouds and the flavor sync pass.
package schedule
