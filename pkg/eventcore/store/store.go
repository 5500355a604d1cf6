// Package store provides the durable append-only event log consumed by
// the bus for optional persistence and replay.
package store

import (
	"context"
	"errors"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
)

// Store is the persistence seam for published events.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds an event to the log. Appending an event whose id is
	// already stored is a no-op, not an error; idempotency-by-id is
	// what makes concurrent appends safe without extra locking.
	Append(ctx context.Context, evt *event.Event) error

	// Query returns stored events matching the filter, oldest first.
	// A zero Filter matches everything.
	Query(ctx context.Context, f Filter) ([]*event.Event, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Filter narrows a Query. Zero-valued fields are ignored.
type Filter struct {
	// Types restricts results to the given event types.
	Types []string

	// Platform restricts results to events from one source platform.
	Platform string

	// Connector restricts results to events from one connector.
	Connector string

	// Limit caps the number of returned events. 0 means no cap.
	Limit int
}

func (f Filter) matches(evt *event.Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if evt.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Platform != "" && evt.Source.Platform != f.Platform {
		return false
	}
	if f.Connector != "" && evt.Source.Connector != f.Connector {
		return false
	}
	return true
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")
)
