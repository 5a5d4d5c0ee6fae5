// Package pgclient talks to the hosted payment page provider's REST order API.
//
// Every request carries the merchant app id and an HMAC-SHA256 signature of
// the canonical request string, keyed by the merchant secret.
package pgclient

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

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerAppID     = "X-App-Id"
	headerTimestamp = "X-Timestamp"
	headerSignature = "X-Signature"

	maxResponseBytes = 1 << 20
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentGateway.
type Client struct {
	baseURL   string
	appID     string
	secretKey string
	returnURL string
	signer    ports.SignatureService
	http      HTTPClient
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a gateway client. A nil httpClient gets a default one bounded by cfg.Timeout.
func New(cfg config.GatewayConfig, signer ports.SignatureService, httpClient HTTPClient, m *metrics.Metrics, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appID:     cfg.AppID,
		secretKey: cfg.SecretKey,
		returnURL: cfg.ReturnURL,
		signer:    signer,
		http:      httpClient,
		metrics:   m,
		now:       time.Now,
		log:       log,
	}
}

type createOrderRequest struct {
	ClientReference string `json:"client_reference"`
	Amount          string `json:"amount"`
	CustomerRef     string `json:"customer_ref"`
	Description     string `json:"description,omitempty"`
	ReturnURL       string `json:"return_url,omitempty"`
}

type createOrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentURL       string `json:"payment_url"`
	GatewayReference string `json:"gateway_reference"`
}

type orderStatusResponse struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	GatewayReference string `json:"gateway_reference"`
}

// CreateOrder opens a hosted payment page for the retailer.
func (c *Client) CreateOrder(ctx context.Context, in ports.GatewayOrderInput) (out *ports.GatewayOrder, err error) {
	defer func(start time.Time) { c.metrics.ObserveGatewayCall("create_order", start, err) }(time.Now())

	body, err := json.Marshal(createOrderRequest{
		ClientReference: uuid.NewString(),
		Amount:          money.Format(in.Amount),
		CustomerRef:     in.RetailerID,
		Description:     in.Description,
		ReturnURL:       c.returnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal create order: %w", err)
	}

	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" || resp.PaymentURL == "" {
		return nil, fmt.Errorf("gateway create order: incomplete response")
	}

	return &ports.GatewayOrder{
		OrderID:          resp.OrderID,
		PaymentURL:       resp.PaymentURL,
		GatewayReference: resp.GatewayReference,
	}, nil
}

// GetOrderStatus asks the gateway for its current view of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (out *ports.GatewayOrderStatus, err error) {
	defer func(start time.Time) { c.metrics.ObserveGatewayCall("order_status", start, err) }(time.Now())

	var resp orderStatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}

	return &ports.GatewayOrderStatus{
		Status:           mapStatus(resp.Status),
		GatewayReference: resp.GatewayReference,
	}, nil
}

// mapStatus folds the provider's vocabulary into the three states the ledger knows.
// Anything unrecognised stays Created so the order is simply re-checked later.
func mapStatus(s string) domain.GatewayStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "PAID", "CAPTURED", "COMPLETED":
		return domain.GatewayStatusSuccess
	case "FAILED", "FAILURE", "CANCELLED", "EXPIRED", "DECLINED":
		return domain.GatewayStatusFailed
	default:
		return domain.GatewayStatusCreated
	}
}

// canonical builds METHOD|PATH|TIMESTAMP|BODY, the string the provider signs.
func canonical(method, path string, ts int64, body []byte) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d|%s", method, path, ts, body))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}

	ts := c.now().Unix()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerAppID, c.appID)
	req.Header.Set(headerTimestamp, fmt.Sprintf("%d", ts))
	req.Header.Set(headerSignature, c.signer.Sign(c.secretKey, canonical(method, path, ts, body)))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("gateway call failed")
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", truncate(string(raw), 256)).
			Msg("gateway returned non-2xx")
		return fmt.Errorf("gateway %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
