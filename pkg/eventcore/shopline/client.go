// Package shopline wraps a Shopline Open API client so that every
// successful call also produces a standard event. The wrapper changes
// nothing about the call itself: arguments pass through untouched and
// the native result comes back verbatim, whether or not the event
// pipeline is healthy.
package shopline

import "context"

// APIVersion is the Shopline Open API version the endpoints target.
const APIVersion = "v20260301"

// Endpoint paths recorded in event metadata.
const (
	endpointShop     = "/admin/openapi/" + APIVersion + "/merchants/shop.json"
	endpointProducts = "/admin/openapi/" + APIVersion + "/products/products.json"
	endpointOrders   = "/admin/openapi/" + APIVersion + "/orders.json"
)

// Result is the native Shopline API response shape. Success reflects
// the API-level outcome; transport failures surface as Go errors, not
// as failed Results.
type Result struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ListParams are the common pagination and filter parameters for list
// endpoints. Zero values mean the API defaults.
type ListParams struct {
	Page   int
	Limit  int
	Status string
}

// Client is the Shopline API surface the connector wraps. Implemented
// by the real HTTP client in the host application and by stubs in
// tests.
type Client interface {
	GetShopInfo(ctx context.Context, accessToken string) (*Result, error)
	ListProducts(ctx context.Context, accessToken string, params ListParams) (*Result, error)
	CreateProduct(ctx context.Context, accessToken string, product map[string]any) (*Result, error)
	CreateOrder(ctx context.Context, accessToken string, order map[string]any) (*Result, error)
	ListOrders(ctx context.Context, accessToken string, params ListParams) (*Result, error)
	GetOrder(ctx context.Context, accessToken, orderID string) (*Result, error)
	UpdateOrder(ctx context.Context, accessToken, orderID string, update map[string]any) (*Result, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Result, error)
	RevokeToken(ctx context.Context, accessToken string) (*Result, error)
}
