package database

import "context"

// Event is a connection lifecycle notification. The set of events is closed.
type Event interface {
	// Name returns the event name: waiting, succeeded or failed.
	Name() string
	event()
}

// ConnectionWaiting is emitted when a Lazy adapter is constructed.
type ConnectionWaiting struct {
	Credentials *Credentials
}

// ConnectionSucceeded is emitted after a successful dial.
type ConnectionSucceeded struct {
	Credentials *Credentials
	Adapter     *Adapter
}

// ConnectionFailed is emitted after a failed dial.
type ConnectionFailed struct {
	Cause *ConnectionError
}

// Event names.
const (
	EventWaiting   = "waiting"
	EventSucceeded = "succeeded"
	EventFailed    = "failed"
)

func (ConnectionWaiting) Name() string   { return EventWaiting }
func (ConnectionSucceeded) Name() string { return EventSucceeded }
func (ConnectionFailed) Name() string    { return EventFailed }

func (ConnectionWaiting) event()   {}
func (ConnectionSucceeded) event() {}
func (ConnectionFailed) event()    {}

// Notifier receives connection lifecycle events. Notify is called synchronously
// from the adapter and must not call back into it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

type notifiers []Notifier

func (ns notifiers) Notify(ctx context.Context, event Event) {
	for _, n := range ns {
		n.Notify(ctx, event)
	}
}

// Notifiers fans events out to every non-nil notifier in order.
func Notifiers(list ...Notifier) Notifier {
	out := make(notifiers, 0, len(list))
	for _, n := range list {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// EventCredentials returns the credentials an event refers to.
func EventCredentials(event Event) *Credentials {
	switch e := event.(type) {
	case ConnectionWaiting:
		return e.Credentials
	case ConnectionSucceeded:
		return e.Credentials
	case ConnectionFailed:
		if e.Cause != nil {
			return e.Cause.Credentials
		}
	}
	return nil
}
