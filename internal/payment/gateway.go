// Package payment talks to the external redirect-checkout gateway: it
// opens remote orders for server-computed amounts and authenticates the
// signed callbacks that report a completed payment.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// OrderRequest asks the gateway for a remote order.  Receipt doubles as
// the idempotency key.
type OrderRequest struct {
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// Order is the handle of a remote order.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// OrderGateway opens remote orders and reads them back.  It holds no
// local state.
type OrderGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	FetchOrder(ctx context.Context, orderID string) (Order, error)
}

// HTTPGateway is an OrderGateway over the gateway's REST API.
type HTTPGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewHTTPGateway builds a client; a nil httpClient gets a 10s timeout.
func NewHTTPGateway(baseURL, keyID, keySecret string, httpClient *http.Client) *HTTPGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    httpClient,
	}
}

// KeyID is the public key handed to the browser checkout.
func (g *HTTPGateway) KeyID() string { return g.keyID }

// CreateOrder posts {amount, currency, receipt} to /v1/orders.  Transport
// failures and non-2xx replies wrap model.ErrGatewayUnavailable.  A reply
// for a different amount or currency wraps model.ErrAmountMismatch.
func (g *HTTPGateway) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	var out Order
	if err := g.do(httpReq, &out); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	if out.AmountMinor != req.AmountMinor || !strings.EqualFold(out.Currency, req.Currency) {
		return Order{}, fmt.Errorf("order %s for %d %s, requested %d %s: %w",
			out.ID, out.AmountMinor, out.Currency, req.AmountMinor, req.Currency, model.ErrAmountMismatch)
	}
	return out, nil
}

// FetchOrder reads an order back, including the amount the customer was
// asked to pay.
func (g *HTTPGateway) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, fmt.Errorf("fetch order: empty id: %w", model.ErrGatewayUnavailable)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return Order{}, fmt.Errorf("build fetch request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	var out Order
	if err := g.do(httpReq, &out); err != nil {
		return Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if out.ID != orderID {
		return Order{}, fmt.Errorf("fetch order %s: got %q: %w", orderID, out.ID, model.ErrGatewayUnavailable)
	}
	return out, nil
}

// do sends req and decodes a 2xx JSON reply into out.  Every failure
// wraps model.ErrGatewayUnavailable.
func (g *HTTPGateway) do(req *http.Request, out *Order) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %v: %w", err, model.ErrGatewayUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %w", resp.StatusCode, model.ErrGatewayUnavailable)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode order: %v: %w", err, model.ErrGatewayUnavailable)
	}
	if out.ID == "" {
		return fmt.Errorf("order without id: %w", model.ErrGatewayUnavailable)
	}
	return nil
}
