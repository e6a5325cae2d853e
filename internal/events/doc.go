// Package events fans TokenChanged lifecycle events out to subscribers.
//
// Publishing never blocks: each subscriber has a buffered channel and an
// event is dropped for a subscriber whose buffer is full.
package events
