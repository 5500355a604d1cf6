package event

import (
	"fmt"
	"regexp"
	"strings"
)

// Event types follow the resource.action naming rule. The set is closed:
// extending it means adding a constant here and cutting a new release,
// not registering strings at runtime.
const (
	// Inventory events
	TypeInventoryUpdated    = "inventory.updated"
	TypeInventoryLow        = "inventory.low"
	TypeInventoryOutOfStock = "inventory.out_of_stock"

	// Product events
	TypeProductCreated   = "product.created"
	TypeProductUpdated   = "product.updated"
	TypeProductDeleted   = "product.deleted"
	TypeProductPublished = "product.published"
	TypeProductArchived  = "product.archived"
	TypeProductQueried   = "product.queried"

	// Order events
	TypeOrderCreated   = "order.created"
	TypeOrderUpdated   = "order.updated"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderFulfilled = "order.fulfilled"
	TypeOrderPaid      = "order.paid"
	TypeOrderRefunded  = "order.refunded"
	TypeOrderQueried   = "order.queried"

	// Customer events
	TypeCustomerCreated = "customer.created"
	TypeCustomerUpdated = "customer.updated"
	TypeCustomerDeleted = "customer.deleted"

	// Shop events
	TypeShopQueried = "shop.queried"

	// Price events
	TypePriceUpdated          = "price.updated"
	TypePricePromotionStarted = "price.promotion_started"
	TypePricePromotionEnded   = "price.promotion_ended"

	// Auth events
	TypeAuthTokenRefreshed  = "auth.token_refreshed"
	TypeAuthTokenRevoked    = "auth.token_revoked"
	TypeAuthOAuthAuthorized = "auth.oauth_authorized"
	TypeAuthOAuthRevoked    = "auth.oauth_revoked"
	TypeAuthLoginSuccess    = "auth.login_success"
	TypeAuthLoginFailed     = "auth.login_failed"
	TypeAuthLogout          = "auth.logout"

	// Sync events
	TypeSyncConflictDetected     = "sync.conflict_detected"
	TypeSyncReconciliationNeeded = "sync.reconciliation_needed"
	TypeSyncCompleted            = "sync.completed"
	TypeSyncFailed               = "sync.failed"
)

// knownTypes is the membership index for IsValidType.
var knownTypes = func() map[string]struct{} {
	all := []string{
		TypeInventoryUpdated, TypeInventoryLow, TypeInventoryOutOfStock,
		TypeProductCreated, TypeProductUpdated, TypeProductDeleted,
		TypeProductPublished, TypeProductArchived, TypeProductQueried,
		TypeOrderCreated, TypeOrderUpdated, TypeOrderCancelled,
		TypeOrderFulfilled, TypeOrderPaid, TypeOrderRefunded, TypeOrderQueried,
		TypeCustomerCreated, TypeCustomerUpdated, TypeCustomerDeleted,
		TypeShopQueried,
		TypePriceUpdated, TypePricePromotionStarted, TypePricePromotionEnded,
		TypeAuthTokenRefreshed, TypeAuthTokenRevoked, TypeAuthOAuthAuthorized,
		TypeAuthOAuthRevoked, TypeAuthLoginSuccess, TypeAuthLoginFailed,
		TypeAuthLogout,
		TypeSyncConflictDetected, TypeSyncReconciliationNeeded,
		TypeSyncCompleted, TypeSyncFailed,
	}
	m := make(map[string]struct{}, len(all))
	for _, t := range all {
		m[t] = struct{}{}
	}
	return m
}()

// Types returns all known event types. The slice is a copy.
func Types() []string {
	types := make([]string, 0, len(knownTypes))
	for t := range knownTypes {
		types = append(types, t)
	}
	return types
}

// IsValidType returns true if the type belongs to the known taxonomy.
func IsValidType(eventType string) bool {
	_, ok := knownTypes[eventType]
	return ok
}

// MatchType reports whether an event type matches a subscription pattern.
// "*" matches everything; a pattern containing "*" is treated as a glob
// where "*" stands for zero or more characters, anchored at both ends;
// anything else must match exactly.
func MatchType(eventType, pattern string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Matches(eventType)
}

// Pattern is a subscription pattern compiled once at subscribe time,
// so publishing never rebuilds a matcher per event.
type Pattern struct {
	raw       string
	universal bool
	re        *regexp.Regexp // nil for exact patterns
}

// CompilePattern validates and compiles a subscription pattern.
func CompilePattern(pattern string) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, fmt.Errorf("pattern must be a non-empty string")
	}
	if pattern == "*" {
		return Pattern{raw: pattern, universal: true}, nil
	}
	if !strings.Contains(pattern, "*") {
		return Pattern{raw: pattern}, nil
	}

	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return Pattern{raw: pattern, re: re}, nil
}

// Matches reports whether the given event type matches this pattern.
func (p Pattern) Matches(eventType string) bool {
	if p.universal {
		return true
	}
	if p.re != nil {
		return p.re.MatchString(eventType)
	}
	return p.raw == eventType
}

// IsWildcard returns true if the pattern can match more than one type.
func (p Pattern) IsWildcard() bool {
	return p.universal || p.re != nil
}

// String returns the original pattern text.
func (p Pattern) String() string {
	return p.raw
}
