package event

import (
	"time"

	"github.com/google/uuid"
)

// Version is the current envelope schema version, stamped on every event.
const Version = "1.0.0"

// Priority is an operational delivery hint carried in event metadata.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Source identifies where an event came from. Platform names the
// originating system, PlatformID the specific resource within it, and
// Connector the adapter that produced the event. All three are mandatory.
type Source struct {
	Platform   string `json:"platform"`
	PlatformID string `json:"platformId"`
	Connector  string `json:"connector"`

	// OriginalEvent optionally carries the raw upstream payload for
	// debugging. It is never validated or interpreted.
	OriginalEvent any `json:"originalEvent,omitempty"`
}

// Correlation carries cross-event tracing identifiers.
type Correlation struct {
	TraceID        string `json:"traceId,omitempty"`
	CausationID    string `json:"causationId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (c Correlation) isZero() bool {
	return c.TraceID == "" && c.CausationID == "" && c.ConversationID == ""
}

// Metadata carries operational hints supplied by producers.
type Metadata struct {
	RetryCount int            `json:"retryCount,omitempty"`
	Priority   Priority       `json:"priority,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

func (m Metadata) isZero() bool {
	return m.RetryCount == 0 && m.Priority == "" && len(m.Extra) == 0
}

// Event is the standard envelope every change is normalized into before
// entering the bus. Once constructed it is treated as immutable: the bus
// hands the same event to every handler and makes no ordering guarantee
// between them, so handlers must not mutate it.
type Event struct {
	ID          string         `json:"id"`
	Version     string         `json:"version"`
	Type        string         `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Source      Source         `json:"source"`
	Payload     map[string]any `json:"payload"`
	Correlation *Correlation   `json:"correlation,omitempty"`
	Metadata    *Metadata      `json:"metadata,omitempty"`
}

// Option configures event construction.
type Option func(*eventConfig)

type eventConfig struct {
	id          string
	timestamp   time.Time
	correlation Correlation
	metadata    Metadata
}

// WithEventID sets a specific event ID instead of a generated UUID.
// Intended for replay and testing only; producers never supply IDs.
func WithEventID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithTimestamp overrides the construction timestamp (replay/testing).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// WithCorrelation attaches tracing identifiers.
func WithCorrelation(c Correlation) Option {
	return func(cfg *eventConfig) {
		cfg.correlation = c
	}
}

// WithMetadata attaches operational metadata.
func WithMetadata(m Metadata) Option {
	return func(cfg *eventConfig) {
		cfg.metadata = m
	}
}

// New constructs a standard event. The type must belong to the known
// taxonomy, the source must carry platform, platformId and connector,
// and the payload must be non-nil. Correlation and metadata are copied
// onto the envelope only when non-empty.
func New(eventType string, source Source, payload map[string]any, opts ...Option) (*Event, error) {
	if eventType == "" {
		return nil, &ValidationError{Field: "type", Reason: "event type is required"}
	}
	if !IsValidType(eventType) {
		return nil, &ValidationError{Field: "type", Reason: "invalid event type: " + eventType}
	}
	if source.Platform == "" || source.PlatformID == "" || source.Connector == "" {
		return nil, &ValidationError{
			Field:  "source",
			Reason: "source must include platform, platformId, and connector",
		}
	}
	if payload == nil {
		return nil, &ValidationError{Field: "payload", Reason: "event payload is required"}
	}

	cfg := &eventConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	evt := &Event{
		ID:        cfg.id,
		Version:   Version,
		Type:      eventType,
		Timestamp: cfg.timestamp,
		Source:    source,
		Payload:   payload,
	}
	if !cfg.correlation.isZero() {
		c := cfg.correlation
		evt.Correlation = &c
	}
	if !cfg.metadata.isZero() {
		m := cfg.metadata
		evt.Metadata = &m
	}
	return evt, nil
}

// Validate re-checks an already-constructed event. The bus calls this
// before persistence and delivery; stores may call it before append.
func Validate(evt *Event) error {
	if evt == nil {
		return &ValidationError{Field: "event", Reason: "event is nil"}
	}
	if evt.ID == "" {
		return &ValidationError{Field: "id", Reason: "event must have a valid id"}
	}
	if evt.Version == "" {
		return &ValidationError{Field: "version", Reason: "event must have a valid version"}
	}
	if !IsValidType(evt.Type) {
		return &ValidationError{Field: "type", Reason: "invalid event type: " + evt.Type}
	}
	if evt.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "event must have a valid timestamp"}
	}
	if evt.Source.Platform == "" || evt.Source.PlatformID == "" || evt.Source.Connector == "" {
		return &ValidationError{
			Field:  "source",
			Reason: "event must have a valid source with platform, platformId, and connector",
		}
	}
	if evt.Payload == nil {
		return &ValidationError{Field: "payload", Reason: "event must have a valid payload"}
	}
	return nil
}

// Overrides describes the fields Clone replaces on the copy. Top-level
// zero values mean "keep the original". Nested objects merge field by
// field (payload and metadata extras merge key by key).
type Overrides struct {
	ID        string
	Version   string
	Type      string
	Timestamp time.Time

	Source      *Source
	Payload     map[string]any
	Correlation *Correlation
	Metadata    *MetadataPatch
}

// MetadataPatch is the metadata portion of an override. RetryCount is a
// pointer so an explicit zero can be distinguished from "keep".
type MetadataPatch struct {
	RetryCount *int
	Priority   Priority
	Extra      map[string]any
}

// Clone produces a structurally independent copy of an event with the
// given overrides merged in. Intended for retry and replay scenarios
// where a new attempt keeps the identity-bearing fields but adjusts
// metadata, e.g. an incremented retry count.
func Clone(evt *Event, o Overrides) *Event {
	out := &Event{
		ID:        evt.ID,
		Version:   evt.Version,
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Source:    evt.Source,
	}
	if o.ID != "" {
		out.ID = o.ID
	}
	if o.Version != "" {
		out.Version = o.Version
	}
	if o.Type != "" {
		out.Type = o.Type
	}
	if !o.Timestamp.IsZero() {
		out.Timestamp = o.Timestamp
	}

	if o.Source != nil {
		if o.Source.Platform != "" {
			out.Source.Platform = o.Source.Platform
		}
		if o.Source.PlatformID != "" {
			out.Source.PlatformID = o.Source.PlatformID
		}
		if o.Source.Connector != "" {
			out.Source.Connector = o.Source.Connector
		}
		if o.Source.OriginalEvent != nil {
			out.Source.OriginalEvent = o.Source.OriginalEvent
		}
	}

	out.Payload = make(map[string]any, len(evt.Payload)+len(o.Payload))
	for k, v := range evt.Payload {
		out.Payload[k] = v
	}
	for k, v := range o.Payload {
		out.Payload[k] = v
	}

	if evt.Correlation != nil || o.Correlation != nil {
		c := Correlation{}
		if evt.Correlation != nil {
			c = *evt.Correlation
		}
		if o.Correlation != nil {
			if o.Correlation.TraceID != "" {
				c.TraceID = o.Correlation.TraceID
			}
			if o.Correlation.CausationID != "" {
				c.CausationID = o.Correlation.CausationID
			}
			if o.Correlation.ConversationID != "" {
				c.ConversationID = o.Correlation.ConversationID
			}
		}
		out.Correlation = &c
	}

	if evt.Metadata != nil || o.Metadata != nil {
		m := Metadata{}
		if evt.Metadata != nil {
			m = *evt.Metadata
			if len(evt.Metadata.Extra) > 0 {
				m.Extra = make(map[string]any, len(evt.Metadata.Extra))
				for k, v := range evt.Metadata.Extra {
					m.Extra[k] = v
				}
			}
		}
		if o.Metadata != nil {
			if o.Metadata.RetryCount != nil {
				m.RetryCount = *o.Metadata.RetryCount
			}
			if o.Metadata.Priority != "" {
				m.Priority = o.Metadata.Priority
			}
			if len(o.Metadata.Extra) > 0 {
				if m.Extra == nil {
					m.Extra = make(map[string]any, len(o.Metadata.Extra))
				}
				for k, v := range o.Metadata.Extra {
					m.Extra[k] = v
				}
			}
		}
		out.Metadata = &m
	}

	return out
}
