package pgclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "gw-secret"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(config.GatewayConfig{
		BaseURL:   srv.URL + "/",
		AppID:     "app-123",
		SecretKey: testSecret,
		ReturnURL: "https://shop.example.com/wallet",
		Timeout:   2 * time.Second,
	}, service.NewHMACSignatureService(), nil, nil, zerolog.Nop())
}

// verifySignature recomputes the request signature the way the provider does.
func verifySignature(t *testing.T, r *http.Request, body []byte) {
	t.Helper()
	ts, err := strconv.ParseInt(r.Header.Get(headerTimestamp), 10, 64)
	require.NoError(t, err)
	sig := service.NewHMACSignatureService()
	assert.True(t, sig.Verify(testSecret, canonical(r.Method, r.URL.EscapedPath(), ts, body), r.Header.Get(headerSignature)),
		"request signature must verify")
	assert.Equal(t, "app-123", r.Header.Get(headerAppID))
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, body)

		var req createOrderRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "500.00", req.Amount)
		assert.Equal(t, "r-1", req.CustomerRef)
		assert.Equal(t, "https://shop.example.com/wallet", req.ReturnURL)
		assert.NotEmpty(t, req.ClientReference)

		_ = json.NewEncoder(w).Encode(createOrderResponse{
			OrderID:          "ORD-1",
			PaymentURL:       "https://pay.example.com/ORD-1",
			GatewayReference: "GREF-1",
		})
	})

	out, err := c.CreateOrder(t.Context(), ports.GatewayOrderInput{RetailerID: "r-1", Amount: 50000, Description: "Wallet recharge"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", out.OrderID)
	assert.Equal(t, "https://pay.example.com/ORD-1", out.PaymentURL)
	assert.Equal(t, "GREF-1", out.GatewayReference)
}

func TestCreateOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>")
		}},
		{"missing payment url", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"order_id":"ORD-1"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			out, err := c.CreateOrder(t.Context(), ports.GatewayOrderInput{RetailerID: "r-1", Amount: 100})
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestGetOrderStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   domain.GatewayStatus
	}{
		{"SUCCESS", domain.GatewayStatusSuccess},
		{"Success", domain.GatewayStatusSuccess},
		{"paid", domain.GatewayStatusSuccess},
		{"FAILURE", domain.GatewayStatusFailed},
		{"expired", domain.GatewayStatusFailed},
		{"PENDING", domain.GatewayStatusCreated},
		{"CREATED", domain.GatewayStatusCreated},
		{"", domain.GatewayStatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/orders/ORD 9", r.URL.Path)
				verifySignature(t, r, nil)
				_ = json.NewEncoder(w).Encode(orderStatusResponse{OrderID: "ORD 9", Status: tt.remote, GatewayReference: "UTR9"})
			})

			out, err := c.GetOrderStatus(t.Context(), "ORD 9")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
			assert.Equal(t, "UTR9", out.GatewayReference)
		})
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestGetOrderStatus_TransportError(t *testing.T) {
	c := New(config.GatewayConfig{BaseURL: "http://gateway.invalid"}, service.NewHMACSignatureService(), failingDoer{}, nil, zerolog.Nop())

	_, err := c.GetOrderStatus(t.Context(), "ORD-1")
	assert.ErrorContains(t, err, "connection refused")
}
