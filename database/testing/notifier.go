// Package testing provides helpers for testing code built on the database package:
// a recording notifier, a go-sqlmock backed opener and query log assertions.
package testing

import (
	"context"
	"sync"

	"github.com/gaborage/go-bricks-db/database"
)

// RecordingNotifier records every connection lifecycle event it receives.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []database.Event
}

// NewRecordingNotifier returns an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Notify implements database.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, event database.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns a copy of the recorded events in order.
func (n *RecordingNotifier) Events() []database.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]database.Event(nil), n.events...)
}

// Names returns the names of the recorded events in order.
func (n *RecordingNotifier) Names() []string {
	events := n.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name()
	}
	return names
}

// Count returns how many events named name were recorded.
func (n *RecordingNotifier) Count(name string) int {
	count := 0
	for _, e := range n.Events() {
		if e.Name() == name {
			count++
		}
	}
	return count
}

// Reset forgets every recorded event.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}
