package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/observability"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/store"
)

// Handler processes one delivered event. Errors returned by a handler
// are isolated by the bus: counted, logged, and never propagated to the
// publisher.
type Handler func(ctx context.Context, evt *event.Event) error

// Sentinel errors for bus operations.
var (
	// ErrNoStore indicates replay was requested without a configured store.
	ErrNoStore = errors.New("event store not configured")

	// ErrNilHandler indicates a subscribe call without a handler.
	ErrNilHandler = errors.New("handler must not be nil")
)

// Config configures bus behavior.
type Config struct {
	// Store is the optional persistence seam. When nil, publish skips
	// persistence and Replay returns ErrNoStore.
	Store store.Store

	// Disabled starts the bus in the silent no-op state.
	Disabled bool

	// HandlerTimeout bounds each handler invocation. A handler that
	// exceeds it is counted as a handler error and delivery moves on.
	// 0 disables the deadline.
	HandlerTimeout time.Duration

	// Logger receives structured diagnostics. nil disables logging.
	Logger *slog.Logger

	// Metrics records pipeline metrics. nil means no-op.
	Metrics observability.MetricsRecorder

	// Spans manages publish/replay trace spans. nil means no-op.
	Spans observability.SpanManager
}

// Bus is the in-process publish/subscribe broker. Delivery is
// synchronous: Publish returns only after every matching handler has
// been invoked, with each handler failure isolated from the publisher
// and from the other handlers.
type Bus struct {
	cfg Config

	mu       sync.RWMutex
	exact    map[string]map[string]*subscription // event type -> subscription ID -> subscription
	wildcard map[string]*subscription            // subscription ID -> subscription

	enabled atomic.Bool

	published atomic.Int64
	delivered atomic.Int64
	errors    atomic.Int64
}

// subscription is an internal registration.
type subscription struct {
	id        string
	pattern   event.Pattern
	handler   Handler
	createdAt time.Time
}

// Stats is a snapshot of the cumulative bus counters plus the live
// subscription count. Counters reset only with the bus itself.
type Stats struct {
	Published           int64
	Delivered           int64
	Errors              int64
	ActiveSubscriptions int
}

// New creates a bus. The zero Config gives an enabled bus with no
// store, no deadline, and no observability.
func New(cfg Config) *Bus {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}

	b := &Bus{
		cfg:      cfg,
		exact:    make(map[string]map[string]*subscription),
		wildcard: make(map[string]*subscription),
	}
	b.enabled.Store(!cfg.Disabled)
	return b
}

// Publish validates the event, appends it to the store when one is
// configured (best effort), and delivers it synchronously to every
// matching subscription. A disabled bus returns nil without doing
// anything. Only validation failures are returned to the caller;
// handler and persistence failures are isolated.
func (b *Bus) Publish(ctx context.Context, evt *event.Event) error {
	if !b.enabled.Load() {
		if evt != nil {
			observability.LogPublishSkipped(b.cfg.Logger, evt.Type)
		}
		return nil
	}

	if err := event.Validate(evt); err != nil {
		b.errors.Add(1)
		b.cfg.Metrics.RecordPublish(ctx, eventType(evt), 0, err)
		return err
	}

	ctx, span := b.cfg.Spans.StartPublishSpan(ctx, evt.Type, evt.ID)
	defer b.cfg.Spans.EndSpanWithError(span, nil)
	start := time.Now()

	if b.cfg.Store != nil {
		err := b.cfg.Store.Append(ctx, evt)
		b.cfg.Metrics.RecordStoreAppend(ctx, err)
		if err != nil {
			// Durability is best effort; delivery is the guarantee.
			observability.LogStoreAppendError(b.cfg.Logger, evt.ID, evt.Type, err)
		}
	}

	for _, sub := range b.matching(evt.Type) {
		b.deliver(ctx, sub, evt)
	}

	b.published.Add(1)
	b.cfg.Metrics.RecordPublish(ctx, evt.Type, time.Since(start), nil)
	observability.LogPublished(b.cfg.Logger, evt.Type, evt.ID)
	return nil
}

// PublishBatch publishes events sequentially, stopping at the first
// failing publish. Callers needing per-event failure isolation should
// call Publish directly.
func (b *Bus) PublishBatch(ctx context.Context, events []*event.Event) error {
	if events == nil {
		return fmt.Errorf("events must not be nil")
	}
	for i, evt := range events {
		if err := b.Publish(ctx, evt); err != nil {
			return fmt.Errorf("publish event %d: %w", i, err)
		}
	}
	return nil
}

// Subscribe registers a handler for every event whose type matches the
// pattern. The pattern is compiled once here, not per published event.
// The returned id is opaque and only good for Unsubscribe.
func (b *Bus) Subscribe(pattern string, handler Handler) (string, error) {
	p, err := event.CompilePattern(pattern)
	if err != nil {
		return "", err
	}
	if handler == nil {
		return "", ErrNilHandler
	}

	sub := &subscription{
		id:        uuid.New().String(),
		pattern:   p,
		handler:   handler,
		createdAt: time.Now(),
	}

	b.mu.Lock()
	if p.IsWildcard() {
		b.wildcard[sub.id] = sub
	} else {
		t := p.String()
		if b.exact[t] == nil {
			b.exact[t] = make(map[string]*subscription)
		}
		b.exact[t][sub.id] = sub
	}
	b.mu.Unlock()

	observability.LogSubscribed(b.cfg.Logger, pattern, sub.id)
	return sub.id, nil
}

// Unsubscribe removes a registration. Unknown ids are a logged no-op,
// not an error.
func (b *Bus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.wildcard[subscriptionID]; ok {
		delete(b.wildcard, subscriptionID)
		return
	}
	for t, subs := range b.exact {
		if _, ok := subs[subscriptionID]; ok {
			delete(subs, subscriptionID)
			if len(subs) == 0 {
				delete(b.exact, t)
			}
			return
		}
	}

	observability.LogUnknownSubscription(b.cfg.Logger, subscriptionID)
}

// Replay queries the store for matching events and feeds them, oldest
// first, to the supplied handler only. Live subscribers do not see
// replayed events and nothing is re-appended to the store. A handler
// error stops the replay and is returned.
func (b *Bus) Replay(ctx context.Context, f store.Filter, handler Handler) error {
	if b.cfg.Store == nil {
		return ErrNoStore
	}
	if handler == nil {
		return ErrNilHandler
	}

	ctx, span := b.cfg.Spans.StartReplaySpan(ctx)
	elapsed := observability.TimedOperation()
	events, err := b.cfg.Store.Query(ctx, f)
	if err != nil {
		b.cfg.Spans.EndSpanWithError(span, err)
		return fmt.Errorf("query events for replay: %w", err)
	}

	observability.LogReplay(b.cfg.Logger, len(events))

	for _, evt := range events {
		if err := handler(ctx, evt); err != nil {
			b.cfg.Spans.EndSpanWithError(span, err)
			return fmt.Errorf("replay handler for event %s: %w", evt.ID, err)
		}
	}

	b.cfg.Spans.EndSpanWithError(span, nil)
	observability.LogReplayDone(b.cfg.Logger, len(events), elapsed())
	return nil
}

// Stats returns a snapshot of the cumulative counters and the live
// subscription count.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := len(b.wildcard)
	for _, subs := range b.exact {
		active += len(subs)
	}
	b.mu.RUnlock()

	return Stats{
		Published:           b.published.Load(),
		Delivered:           b.delivered.Load(),
		Errors:              b.errors.Load(),
		ActiveSubscriptions: active,
	}
}

// Clear removes every subscription. Counters and the store are untouched.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exact = make(map[string]map[string]*subscription)
	b.wildcard = make(map[string]*subscription)
}

// SetEnabled toggles the silent no-op gate in Publish.
func (b *Bus) SetEnabled(enabled bool) {
	b.enabled.Store(enabled)
}

// IsEnabled reports whether Publish currently delivers.
func (b *Bus) IsEnabled() bool {
	return b.enabled.Load()
}

// matching snapshots the subscriptions whose pattern matches the type.
// Exact and wildcard registrations are independent paths; each matching
// subscription is delivered to exactly once.
func (b *Bus) matching(eventType string) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]*subscription, 0)
	for _, sub := range b.exact[eventType] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcard {
		if sub.pattern.Matches(eventType) {
			subs = append(subs, sub)
		}
	}
	return subs
}

// deliver invokes one handler with panic recovery and the optional
// per-handler deadline, recording the outcome in the counters.
func (b *Bus) deliver(ctx context.Context, sub *subscription, evt *event.Event) {
	var err error
	if b.cfg.HandlerTimeout > 0 {
		err = b.invokeWithTimeout(ctx, sub, evt)
	} else {
		err = invoke(ctx, sub.handler, evt)
	}

	b.cfg.Metrics.RecordDelivery(ctx, evt.Type, err)
	if err != nil {
		b.errors.Add(1)
		observability.LogHandlerError(b.cfg.Logger, evt.ID, evt.Type, sub.id, err)
		return
	}
	b.delivered.Add(1)
}

// invokeWithTimeout abandons a handler that outlives the deadline. The
// abandoned goroutine keeps running until the handler honors its
// context; the timeout is counted as a handler error either way.
func (b *Bus) invokeWithTimeout(ctx context.Context, sub *subscription, evt *event.Event) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- invoke(ctx, sub.handler, evt)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler exceeded %s deadline: %w", b.cfg.HandlerTimeout, ctx.Err())
	}
}

// invoke runs a handler, converting panics into errors so one bad
// subscriber cannot take down the publisher.
func invoke(ctx context.Context, h Handler, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, evt)
}

func eventType(evt *event.Event) string {
	if evt == nil {
		return ""
	}
	return evt.Type
}
