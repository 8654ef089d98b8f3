package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocksync/internal/app/client/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *httpClient {
	return NewHTTPClient(&config.Config{
		ServerAddress:    url,
		TenantID:         "dealer-1",
		LicenseKey:       "KEY-1",
		DeviceIdentifier: "device-1",
	}, discardLog())
}

func TestHTTPClient_PushSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync/transactions/push", r.URL.Path)
		assert.Equal(t, "KEY-1", r.Header.Get("X-License-Key"))
		assert.Equal(t, "dealer-1", r.Header.Get("X-Dealer-Id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "device-1", body["device_identifier"])
		assert.Len(t, body["transactions"], 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"inserted":1,"skipped":0,"failed":0}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Push(context.Background(), []LocalTransaction{
		{ID: "t1", ActionType: "SALE", QuantityChange: decimal.NewFromInt(-1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Inserted)
}

func TestHTTPClient_PullDecodesNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"count":1,"next_cursor":7,"has_more":false,
			"transactions":[{"id":"r1","device_identifier":"other","action_type":"SALE",
			"quantity_change":-2.5,"metadata":null,"transaction_time":"2024-01-01T10:00:00Z","synced_at":7}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Pull(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, int64(7), resp.NextCursor)
	assert.Equal(t, "-2.5", resp.Transactions[0].QuantityChange.String())
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		unauthorized bool
		contains     string
	}{
		{
			name:         "forbidden",
			status:       http.StatusForbidden,
			body:         `{"status":403,"detail":"license is not valid"}`,
			unauthorized: true,
			contains:     "license is not valid",
		},
		{
			name:     "unavailable",
			status:   http.StatusServiceUnavailable,
			body:     `not json`,
			contains: "статус 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Heartbeat(context.Background(), "Kassa", 0)
			require.Error(t, err)
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
