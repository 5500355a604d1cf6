// Package event defines the standard event envelope and the closed
// taxonomy of event types shared by every producer and consumer.
//
// # Envelope
//
// Every change, regardless of origin, is normalized into an Event before
// it reaches the bus:
//
//	evt, err := event.New(event.TypeOrderCreated,
//	    event.Source{Platform: "shopline", PlatformID: "order_123", Connector: "shopline-source"},
//	    payload,
//	)
//
// New assigns a fresh UUID, stamps the schema version and timestamp, and
// rejects anything outside the taxonomy or missing its mandatory source
// fields. Validate re-checks an existing envelope; the bus runs it before
// persistence and delivery.
//
// # Pattern matching
//
// Subscriptions match event types either exactly or through a glob where
// "*" stands for zero or more characters:
//
//	event.MatchType("order.created", "order.*") // true
//	event.MatchType("order.created", "*")       // true
//
// CompilePattern builds the matcher once, for subscribe-time compilation
// rather than per-publish regex construction.
//
// # Payload builders
//
// NewInventoryPayload, NewProductPayload, NewOrderPayload and
// NewPricePayload construct the conventional payload shape for their
// resource, each validating its own required fields. They are pure
// functions: no side effects, no shared state.
//
// # Cloning
//
// Clone copies an event with merge-style overrides, for retry and replay
// flows that keep the identity-bearing fields while adjusting metadata:
//
//	attempt := event.Clone(evt, event.Overrides{
//	    Metadata: &event.MetadataPatch{RetryCount: &next},
//	})
package event
