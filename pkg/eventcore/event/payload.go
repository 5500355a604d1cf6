package event

import (
	"fmt"
	"time"
)

// Payload builders construct the conventional payload shape for a
// resource type. Each builder validates its own required fields and
// defaults the optional ones; they are pure functions with no access
// to shared state.

// InventoryInput describes an inventory level change.
type InventoryInput struct {
	ProductCode      string // SKU, required
	LocationID       string
	Quantity         int
	PreviousQuantity *int
	Change           *int // derived from quantities when omitted
	Reason           string // "sale" | "restock" | "adjustment" | "return"
}

// NewInventoryPayload builds an inventory event payload. When Change is
// omitted it is derived as Quantity-PreviousQuantity if the previous
// quantity is known, else zero.
func NewInventoryPayload(in InventoryInput) (map[string]any, error) {
	if in.ProductCode == "" {
		return nil, &ValidationError{Field: "productCode", Reason: "productCode is required for inventory payload"}
	}

	change := 0
	switch {
	case in.Change != nil:
		change = *in.Change
	case in.PreviousQuantity != nil:
		change = in.Quantity - *in.PreviousQuantity
	}

	p := map[string]any{
		"productCode": in.ProductCode,
		"quantity":    in.Quantity,
		"change":      change,
	}
	if in.LocationID != "" {
		p["locationId"] = in.LocationID
	}
	if in.PreviousQuantity != nil {
		p["previousQuantity"] = *in.PreviousQuantity
	}
	if in.Reason != "" {
		p["reason"] = in.Reason
	}
	return p, nil
}

// ProductInput describes a product change.
type ProductInput struct {
	ProductCode    string // SKU or product code, required
	Title          string // required
	Price          *float64
	CompareAtPrice *float64
	Status         string // "active" | "draft" | "archived", required
	Variants       []map[string]any
	ChangedFields  []string
}

// NewProductPayload builds a product event payload.
func NewProductPayload(in ProductInput) (map[string]any, error) {
	if in.ProductCode == "" {
		return nil, &ValidationError{Field: "productCode", Reason: "productCode is required for product payload"}
	}
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "title is required for product payload"}
	}
	if in.Status == "" {
		return nil, &ValidationError{Field: "status", Reason: "status is required for product payload"}
	}

	p := map[string]any{
		"productCode": in.ProductCode,
		"title":       in.Title,
		"status":      in.Status,
	}
	if in.Price != nil {
		p["price"] = *in.Price
	}
	if in.CompareAtPrice != nil {
		p["compareAtPrice"] = *in.CompareAtPrice
	}
	if in.Variants != nil {
		p["variants"] = in.Variants
	}
	if in.ChangedFields != nil {
		p["changedFields"] = in.ChangedFields
	}
	return p, nil
}

// OrderCustomer identifies the customer on an order payload.
type OrderCustomer struct {
	Email string
	Name  string
}

// OrderLineItem is one line of an order payload. Only the conventional
// sku/quantity/price triple is retained.
type OrderLineItem struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderInput describes an order change.
type OrderInput struct {
	OrderNumber string // required
	Status      string // "pending" | "processing" | "shipped" | "delivered" | "cancelled"
	Customer    OrderCustomer
	LineItems   []OrderLineItem // required, may be empty but not nil
	Total       float64
	Currency    string // required
}

// NewOrderPayload builds an order event payload.
func NewOrderPayload(in OrderInput) (map[string]any, error) {
	if in.OrderNumber == "" {
		return nil, &ValidationError{Field: "orderNumber", Reason: "orderNumber is required for order payload"}
	}
	if in.Status == "" {
		return nil, &ValidationError{Field: "status", Reason: "status is required for order payload"}
	}
	if in.Customer.Email == "" || in.Customer.Name == "" {
		return nil, &ValidationError{Field: "customer", Reason: "customer with email and name is required for order payload"}
	}
	if in.LineItems == nil {
		return nil, &ValidationError{Field: "lineItems", Reason: "lineItems must be a list"}
	}
	if in.Currency == "" {
		return nil, &ValidationError{Field: "currency", Reason: "currency is required for order payload"}
	}

	items := make([]map[string]any, len(in.LineItems))
	for i, item := range in.LineItems {
		items[i] = map[string]any{
			"sku":      item.SKU,
			"quantity": item.Quantity,
			"price":    item.Price,
		}
	}

	return map[string]any{
		"orderNumber": in.OrderNumber,
		"status":      in.Status,
		"customer": map[string]any{
			"email": in.Customer.Email,
			"name":  in.Customer.Name,
		},
		"lineItems": items,
		"total":     in.Total,
		"currency":  in.Currency,
	}, nil
}

// PriceInput describes a price change. EffectiveFrom and EffectiveUntil
// accept either a time.Time or an RFC 3339 string.
type PriceInput struct {
	ProductCode    string // SKU, required
	Price          float64
	CompareAtPrice *float64
	EffectiveFrom  any // required; time.Time or RFC 3339 string
	EffectiveUntil any
	Reason         string // "promotion" | "cost_change" | "manual"
}

// NewPricePayload builds a price event payload, normalizing temporal
// fields to time.Time.
func NewPricePayload(in PriceInput) (map[string]any, error) {
	if in.ProductCode == "" {
		return nil, &ValidationError{Field: "productCode", Reason: "productCode is required for price payload"}
	}
	if in.EffectiveFrom == nil {
		return nil, &ValidationError{Field: "effectiveFrom", Reason: "effectiveFrom is required for price payload"}
	}

	from, err := normalizeTime(in.EffectiveFrom)
	if err != nil {
		return nil, &ValidationError{Field: "effectiveFrom", Reason: err.Error()}
	}

	p := map[string]any{
		"productCode":   in.ProductCode,
		"price":         in.Price,
		"effectiveFrom": from,
	}
	if in.CompareAtPrice != nil {
		p["compareAtPrice"] = *in.CompareAtPrice
	}
	if in.EffectiveUntil != nil {
		until, err := normalizeTime(in.EffectiveUntil)
		if err != nil {
			return nil, &ValidationError{Field: "effectiveUntil", Reason: err.Error()}
		}
		p["effectiveUntil"] = until
	}
	if in.Reason != "" {
		p["reason"] = in.Reason
	}
	return p, nil
}

// normalizeTime converts a caller-supplied temporal value to time.Time.
func normalizeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse %q as RFC 3339 time", t)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value of type %T", v)
	}
}
