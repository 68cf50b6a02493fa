package testutil

import (
	"context"
	"sync"

	"github.com/randalmurphal/backupflow/notify"
)

// RecordingNotifier keeps every event it receives.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event

	// Err is returned from every Notify call.
	Err error
}

// Notify implements notify.Notifier.
func (n *RecordingNotifier) Notify(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.Err
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

// Last returns the most recent event and whether there was one.
func (n *RecordingNotifier) Last() (notify.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return notify.Event{}, false
	}
	return n.events[len(n.events)-1], true
}
