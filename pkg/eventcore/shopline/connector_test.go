package shopline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
)

// stubClient returns canned results and records the arguments it saw.
type stubClient struct {
	result *Result
	err    error

	lastToken   string
	lastParams  ListParams
	lastOrderID string
	lastBody    map[string]any
}

func (s *stubClient) GetShopInfo(_ context.Context, token string) (*Result, error) {
	s.lastToken = token
	return s.result, s.err
}

func (s *stubClient) ListProducts(_ context.Context, token string, params ListParams) (*Result, error) {
	s.lastToken, s.lastParams = token, params
	return s.result, s.err
}

func (s *stubClient) CreateProduct(_ context.Context, token string, product map[string]any) (*Result, error) {
	s.lastToken, s.lastBody = token, product
	return s.result, s.err
}

func (s *stubClient) CreateOrder(_ context.Context, token string, order map[string]any) (*Result, error) {
	s.lastToken, s.lastBody = token, order
	return s.result, s.err
}

func (s *stubClient) ListOrders(_ context.Context, token string, params ListParams) (*Result, error) {
	s.lastToken, s.lastParams = token, params
	return s.result, s.err
}

func (s *stubClient) GetOrder(_ context.Context, token, orderID string) (*Result, error) {
	s.lastToken, s.lastOrderID = token, orderID
	return s.result, s.err
}

func (s *stubClient) UpdateOrder(_ context.Context, token, orderID string, update map[string]any) (*Result, error) {
	s.lastToken, s.lastOrderID, s.lastBody = token, orderID, update
	return s.result, s.err
}

func (s *stubClient) RefreshToken(_ context.Context, token string) (*Result, error) {
	s.lastToken = token
	return s.result, s.err
}

func (s *stubClient) RevokeToken(_ context.Context, token string) (*Result, error) {
	s.lastToken = token
	return s.result, s.err
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, evt *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *capturePublisher) published() []*event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*event.Event(nil), p.events...)
}

func newConnector(client Client, bus Publisher) *SourceConnector {
	return NewSourceConnector(client, bus, Config{ShopID: "shop_1"})
}

func TestGetShopInfoPublishesShopQueried(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"shop": map[string]any{
				"id":       "shop_1",
				"name":     "Demo Shop",
				"domain":   "demo.myshopline.com",
				"currency": "TWD",
			},
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	result, err := c.GetShopInfo(context.Background(), "tok_1234567890abcdef")
	require.NoError(t, err)
	assert.Same(t, client.result, result, "native result passes through untouched")

	events := bus.published()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, event.TypeShopQueried, evt.Type)
	assert.Equal(t, "shop_1", evt.Payload["shop_id"])
	assert.Equal(t, "shopline", evt.Source.Platform)
	assert.Equal(t, "shopline-source", evt.Source.Connector)
	require.NotNil(t, evt.Metadata)
	assert.Equal(t, "tok_123456...", evt.Metadata.Extra["access_token"])
	assert.Equal(t, endpointShop, evt.Metadata.Extra["api_endpoint"])
}

func TestFailedResultPublishesNothing(t *testing.T) {
	client := &stubClient{result: &Result{
		Success:      false,
		ErrorCode:    "401",
		ErrorMessage: "unauthorized",
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	result, err := c.GetShopInfo(context.Background(), "tok_bad")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, bus.published())
}

func TestClientErrorPublishesNothing(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	_, err := c.ListProducts(context.Background(), "tok", ListParams{})
	require.Error(t, err)
	assert.Empty(t, bus.published())
}

func TestDisabledConnectorPublishesNothing(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data:    map[string]any{"shop": map[string]any{"id": "shop_1"}},
	}}
	bus := &capturePublisher{}
	c := NewSourceConnector(client, bus, Config{ShopID: "shop_1", Disabled: true})

	require.False(t, c.IsEnabled())
	result, err := c.GetShopInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, result.Success, "API call itself still goes through")
	assert.Empty(t, bus.published())

	c.SetEnabled(true)
	_, err = c.GetShopInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, bus.published(), 1)
}

func TestPublishFailureDoesNotAffectResult(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data:    map[string]any{"shop": map[string]any{"id": "shop_1"}},
	}}
	bus := &capturePublisher{err: errors.New("bus down")}
	c := newConnector(client, bus)

	result, err := c.GetShopInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Same(t, client.result, result)
}

func TestPublishFailureLogsEventContext(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data:    map[string]any{"shop": map[string]any{"id": "shop_1"}},
	}}
	bus := &capturePublisher{err: errors.New("bus down")}

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	c := NewSourceConnector(client, bus, Config{ShopID: "shop_1", Logger: logger})

	_, err := c.GetShopInfo(context.Background(), "tok")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "event publish failed")
	assert.Contains(t, out, "event_type=shop.queried")
	assert.Contains(t, out, "event_id=")
	assert.Contains(t, out, "bus down")
}

func TestListProductsPayloadShape(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"products": []any{
				map[string]any{
					"id":       "prod_1",
					"title":    "Widget",
					"handle":   "widget",
					"status":   "active",
					"variants": []any{map[string]any{"id": "var_1"}},
				},
			},
			"pagination": map[string]any{"total": 37},
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	_, err := c.ListProducts(context.Background(), "tok", ListParams{Page: 2, Limit: 20, Status: "active"})
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, event.TypeProductQueried, evt.Type)

	products, ok := evt.Payload["products"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, products, 1)
	assert.Equal(t, "prod_1", products[0]["product_id"])
	assert.Equal(t, 1, products[0]["variants_count"])

	pagination, ok := evt.Payload["pagination"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 37, pagination["total"])
	assert.Equal(t, 2, pagination["page"])
	assert.Equal(t, 20, pagination["limit"])
}

func TestCreateOrderPublishesOrderCreated(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"order": map[string]any{
				"id":           "order_1",
				"order_number": "SL-1001",
				"status":       "open",
				"total_price":  "1500.00",
				"currency":     "TWD",
				"line_items": []any{
					map[string]any{"variant_id": "var_1", "title": "Widget", "quantity": 3, "price": "500.00"},
				},
			},
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	_, err := c.CreateOrder(context.Background(), "tok", map[string]any{"order": map[string]any{}})
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, event.TypeOrderCreated, evt.Type)
	assert.Equal(t, "order_1", evt.Payload["order_id"])
	assert.Equal(t, "SL-1001", evt.Payload["order_number"])

	lineItems, ok := evt.Payload["line_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, lineItems, 1)
	assert.Equal(t, 3, lineItems[0]["quantity"])
}

func TestUpdateOrderPublishesOrderUpdated(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"order": map[string]any{"id": "order_1", "status": "open"},
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	update := map[string]any{"order": map[string]any{"tags": "vip"}}
	_, err := c.UpdateOrder(context.Background(), "tok", "order_1", update)
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeOrderUpdated, events[0].Type)
	assert.Equal(t, update, events[0].Payload["changes"])
	assert.Equal(t, "order_1", events[0].Metadata.Extra["order_id"])
}

func TestGetOrderIncludesCustomer(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"order": map[string]any{
				"id": "order_1",
				"customer": map[string]any{
					"id":         "cust_1",
					"email":      "buyer@example.com",
					"first_name": "A",
					"last_name":  "Chen",
				},
			},
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	_, err := c.GetOrder(context.Background(), "tok", "order_1")
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeOrderQueried, events[0].Type)
	customer, ok := events[0].Payload["customer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "buyer@example.com", customer["email"])
}

func TestRefreshTokenMasksTokens(t *testing.T) {
	client := &stubClient{result: &Result{
		Success: true,
		Data: map[string]any{
			"access_token": "new_token_abcdef123456",
			"expires_in":   3600,
		},
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	_, err := c.RefreshToken(context.Background(), "refresh_token_xyz")
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, event.TypeAuthTokenRefreshed, evt.Type)
	assert.Equal(t, "new_token_...", evt.Payload["access_token"])
	assert.Equal(t, "refresh_to...", evt.Payload["refresh_token"])
	assert.Equal(t, "Bearer", evt.Payload["token_type"])
}

func TestRevokeTokenPublishesEvenOnFailure(t *testing.T) {
	client := &stubClient{result: &Result{
		Success:      false,
		ErrorCode:    "400",
		ErrorMessage: "token already revoked",
	}}
	bus := &capturePublisher{}
	c := newConnector(client, bus)

	result, err := c.RevokeToken(context.Background(), "tok_1234567890")
	require.NoError(t, err)
	assert.False(t, result.Success)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeAuthTokenRevoked, events[0].Type)
	assert.Equal(t, "tok_123456...", events[0].Payload["access_token"])
	assert.Equal(t, "manual_revoke", events[0].Payload["reason"])
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc", "abc..."},
		{"exact", "0123456789", "0123456789..."},
		{"long", "0123456789abcdef", "0123456789..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskToken(tt.token))
		})
	}
}
