package shopline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/observability"
)

// Publisher is the slice of the bus the connector needs. Publish
// failures are the connector's to absorb; they never reach the API
// caller.
type Publisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

const (
	platformName  = "shopline"
	connectorName = "shopline-source"
)

// Config configures the source connector.
type Config struct {
	// ShopID identifies the shop on the source platform. Used as the
	// event source platformId.
	ShopID string

	// Disabled starts the connector with event publication off. API
	// calls still go through either way.
	Disabled bool

	// Logger receives event-pipeline diagnostics. nil disables logging.
	Logger *slog.Logger
}

// SourceConnector implements Client by delegating every call to the
// wrapped client and, on success, deriving and publishing the
// corresponding event. The returned Result is always the wrapped
// client's, untouched.
type SourceConnector struct {
	client  Client
	bus     Publisher
	cfg     Config
	enabled atomic.Bool
}

var _ Client = (*SourceConnector)(nil)

// NewSourceConnector wraps a client. The publisher may be the bus or
// any stand-in; it must not be nil when events are enabled.
func NewSourceConnector(client Client, bus Publisher, cfg Config) *SourceConnector {
	if cfg.ShopID == "" {
		cfg.ShopID = "unknown"
	}
	c := &SourceConnector{
		client: client,
		bus:    bus,
		cfg:    cfg,
	}
	c.enabled.Store(!cfg.Disabled)
	return c
}

// IsEnabled reports whether successful calls publish events.
func (c *SourceConnector) IsEnabled() bool {
	return c.enabled.Load()
}

// SetEnabled toggles event publication at runtime.
func (c *SourceConnector) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// GetShopInfo fetches the shop profile and publishes shop.queried.
func (c *SourceConnector) GetShopInfo(ctx context.Context, accessToken string) (*Result, error) {
	result, err := c.client.GetShopInfo(ctx, accessToken)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		if shop := asMap(result.Data["shop"]); shop != nil {
			c.publish(ctx, event.TypeShopQueried, map[string]any{
				"shop_id":       shop["id"],
				"shop_name":     shop["name"],
				"shop_domain":   shop["domain"],
				"shop_url":      shop["url"],
				"shop_currency": shop["currency"],
				"shop_timezone": shop["timezone"],
			}, map[string]any{
				"api_endpoint": endpointShop,
				"access_token": maskToken(accessToken),
			})
		}
	}
	return result, nil
}

// ListProducts queries the product list and publishes product.queried.
func (c *SourceConnector) ListProducts(ctx context.Context, accessToken string, params ListParams) (*Result, error) {
	result, err := c.client.ListProducts(ctx, accessToken, params)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		products := asSlice(result.Data["products"])
		summaries := make([]map[string]any, 0, len(products))
		for _, p := range products {
			product := asMap(p)
			if product == nil {
				continue
			}
			summaries = append(summaries, map[string]any{
				"product_id":     product["id"],
				"title":          product["title"],
				"handle":         product["handle"],
				"status":         product["status"],
				"variants_count": len(asSlice(product["variants"])),
			})
		}

		c.publish(ctx, event.TypeProductQueried, map[string]any{
			"products":   summaries,
			"pagination": paginationSummary(result.Data["pagination"], params),
		}, map[string]any{
			"api_endpoint": endpointProducts,
			"access_token": maskToken(accessToken),
			"query_params": params,
		})
	}
	return result, nil
}

// CreateProduct creates a product and publishes product.created.
func (c *SourceConnector) CreateProduct(ctx context.Context, accessToken string, product map[string]any) (*Result, error) {
	result, err := c.client.CreateProduct(ctx, accessToken, product)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		if created := asMap(result.Data["product"]); created != nil {
			variants := make([]map[string]any, 0)
			for _, v := range asSlice(created["variants"]) {
				variant := asMap(v)
				if variant == nil {
					continue
				}
				variants = append(variants, map[string]any{
					"variant_id": variant["id"],
					"sku":        variant["sku"],
					"price":      variant["price"],
				})
			}

			c.publish(ctx, event.TypeProductCreated, map[string]any{
				"product_id": created["id"],
				"title":      created["title"],
				"handle":     created["handle"],
				"status":     created["status"],
				"variants":   variants,
			}, map[string]any{
				"api_endpoint": endpointProducts,
				"access_token": maskToken(accessToken),
			})
		}
	}
	return result, nil
}

// CreateOrder creates an order and publishes order.created.
func (c *SourceConnector) CreateOrder(ctx context.Context, accessToken string, order map[string]any) (*Result, error) {
	result, err := c.client.CreateOrder(ctx, accessToken, order)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		if created := asMap(result.Data["order"]); created != nil {
			c.publish(ctx, event.TypeOrderCreated, orderSummary(created), map[string]any{
				"api_endpoint": endpointOrders,
				"access_token": maskToken(accessToken),
			})
		}
	}
	return result, nil
}

// ListOrders queries the order list and publishes order.queried.
func (c *SourceConnector) ListOrders(ctx context.Context, accessToken string, params ListParams) (*Result, error) {
	result, err := c.client.ListOrders(ctx, accessToken, params)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		orders := asSlice(result.Data["orders"])
		summaries := make([]map[string]any, 0, len(orders))
		for _, o := range orders {
			if order := asMap(o); order != nil {
				summaries = append(summaries, orderSummary(order))
			}
		}

		c.publish(ctx, event.TypeOrderQueried, map[string]any{
			"orders":     summaries,
			"pagination": paginationSummary(result.Data["pagination"], params),
		}, map[string]any{
			"api_endpoint": endpointOrders,
			"access_token": maskToken(accessToken),
			"query_params": params,
		})
	}
	return result, nil
}

// GetOrder fetches one order and publishes order.queried.
func (c *SourceConnector) GetOrder(ctx context.Context, accessToken, orderID string) (*Result, error) {
	result, err := c.client.GetOrder(ctx, accessToken, orderID)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		if order := asMap(result.Data["order"]); order != nil {
			payload := orderSummary(order)
			if customer := asMap(order["customer"]); customer != nil {
				payload["customer"] = map[string]any{
					"customer_id": customer["id"],
					"email":       customer["email"],
					"first_name":  customer["first_name"],
					"last_name":   customer["last_name"],
				}
			}

			c.publish(ctx, event.TypeOrderQueried, payload, map[string]any{
				"api_endpoint": endpointOrders,
				"access_token": maskToken(accessToken),
				"order_id":     orderID,
			})
		}
	}
	return result, nil
}

// UpdateOrder updates an order and publishes order.updated.
func (c *SourceConnector) UpdateOrder(ctx context.Context, accessToken, orderID string, update map[string]any) (*Result, error) {
	result, err := c.client.UpdateOrder(ctx, accessToken, orderID, update)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		if order := asMap(result.Data["order"]); order != nil {
			payload := orderSummary(order)
			payload["changes"] = update

			c.publish(ctx, event.TypeOrderUpdated, payload, map[string]any{
				"api_endpoint": endpointOrders,
				"access_token": maskToken(accessToken),
				"order_id":     orderID,
			})
		}
	}
	return result, nil
}

// RefreshToken exchanges a refresh token and publishes
// auth.token_refreshed. Token values in the payload are masked.
func (c *SourceConnector) RefreshToken(ctx context.Context, refreshToken string) (*Result, error) {
	result, err := c.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return result, err
	}

	if c.shouldPublish(result) {
		c.publish(ctx, event.TypeAuthTokenRefreshed, map[string]any{
			"access_token":  maskToken(asString(result.Data["access_token"])),
			"refresh_token": maskToken(refreshToken),
			"expires_in":    result.Data["expires_in"],
			"token_type":    tokenType(result.Data["token_type"]),
			"refreshed_at":  time.Now().UTC().Format(time.RFC3339),
		}, nil)
	}
	return result, nil
}

// RevokeToken revokes an access token and publishes auth.token_revoked
// whether or not the revocation succeeded. An audit trail of attempted
// revocations is worth more than one of completed ones.
func (c *SourceConnector) RevokeToken(ctx context.Context, accessToken string) (*Result, error) {
	result, err := c.client.RevokeToken(ctx, accessToken)
	if err != nil {
		return result, err
	}

	if c.enabled.Load() {
		c.publish(ctx, event.TypeAuthTokenRevoked, map[string]any{
			"access_token": maskToken(accessToken),
			"revoked_at":   time.Now().UTC().Format(time.RFC3339),
			"reason":       "manual_revoke",
		}, nil)
	}
	return result, nil
}

// shouldPublish gates event derivation for the success-only operations.
func (c *SourceConnector) shouldPublish(result *Result) bool {
	return c.enabled.Load() && result != nil && result.Success
}

// publish builds and publishes one event, absorbing every failure.
func (c *SourceConnector) publish(ctx context.Context, eventType string, payload, extra map[string]any) {
	source := event.Source{
		Platform:   platformName,
		PlatformID: c.cfg.ShopID,
		Connector:  connectorName,
	}

	var opts []event.Option
	if extra != nil {
		opts = append(opts, event.WithMetadata(event.Metadata{Extra: extra}))
	}

	evt, err := event.New(eventType, source, payload, opts...)
	if err != nil {
		c.logEventFailure(eventType, "build", err)
		return
	}

	if err := c.bus.Publish(ctx, evt); err != nil {
		if logger := observability.EnrichLogger(c.cfg.Logger, evt.ID, evt.Type); logger != nil {
			logger.Warn("event publish failed", "error", err)
		}
	}
}

func (c *SourceConnector) logEventFailure(eventType, stage string, err error) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.Warn("event derivation failed",
		"event_type", eventType,
		"stage", stage,
		"error", err)
}

// maskToken keeps a 10 character prefix for log correlation and hides
// the rest.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 10 {
		token = token[:10]
	}
	return token + "..."
}

func orderSummary(order map[string]any) map[string]any {
	lineItems := make([]map[string]any, 0)
	for _, li := range asSlice(order["line_items"]) {
		item := asMap(li)
		if item == nil {
			continue
		}
		lineItems = append(lineItems, map[string]any{
			"variant_id": item["variant_id"],
			"title":      item["title"],
			"quantity":   item["quantity"],
			"price":      item["price"],
		})
	}

	return map[string]any{
		"order_id":     order["id"],
		"order_number": order["order_number"],
		"status":       order["status"],
		"total_price":  order["total_price"],
		"currency":     order["currency"],
		"line_items":   lineItems,
	}
}

func paginationSummary(v any, params ListParams) map[string]any {
	page := params.Page
	if page == 0 {
		page = 1
	}
	limit := params.Limit
	if limit == 0 {
		limit = 10
	}

	var total any = 0
	if pagination := asMap(v); pagination != nil {
		if t, ok := pagination["total"]; ok {
			total = t
		}
	}

	return map[string]any{
		"total": total,
		"page":  page,
		"limit": limit,
	}
}

func tokenType(v any) string {
	if s := asString(v); s != "" {
		return s
	}
	return "Bearer"
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
