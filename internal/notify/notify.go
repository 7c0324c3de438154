// Package notify bridges Quorum workflow events to chat platforms so pod
// leads hear about flags and reconciliation runs without polling.
package notify

import (
	"context"
	"log"
)

// Adapter is the interface platform-specific implementations must satisfy.
type Adapter interface {
	// Send delivers one formatted event to the platform.
	Send(ctx context.Context, ev Event) error

	// Close gracefully shuts down the adapter.
	Close() error
}

// Event is a workflow event formatted for display in chat.
type Event struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Color    string // sidebar color hint (e.g. "#e01e5a" for warnings)
	Fields   []Field
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier fans an event out to every configured adapter. Delivery failures
// are logged, never surfaced: notifications must not fail the operation that
// triggered them.
type Notifier struct {
	adapters []Adapter
}

// New builds a Notifier over the given adapters. Nil adapters are skipped.
func New(adapters ...Adapter) *Notifier {
	n := &Notifier{}
	for _, a := range adapters {
		if a != nil {
			n.adapters = append(n.adapters, a)
		}
	}
	return n
}

// Send delivers ev to all adapters.
func (n *Notifier) Send(ctx context.Context, ev Event) {
	for _, a := range n.adapters {
		if err := a.Send(ctx, ev); err != nil {
			log.Printf("notify: send %q: %v", ev.Title, err)
		}
	}
}

// Close shuts down all adapters.
func (n *Notifier) Close() {
	for _, a := range n.adapters {
		if err := a.Close(); err != nil {
			log.Printf("notify: close: %v", err)
		}
	}
}
