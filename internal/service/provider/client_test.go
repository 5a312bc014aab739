package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/logger"
)

func testRequest() PurchaseRequest {
	return PurchaseRequest{
		Reference:   "BV-20240101000000-abcdef12",
		ServiceType: "AIRTIME",
		Recipient:   "+2348031234567",
		Amount:      decimal.NewFromInt(500),
		Currency:    "NGN",
	}
}

func TestClient_Purchase(t *testing.T) {
	tests := []struct {
		name           string
		httpStatus     int
		body           string
		expectedStatus string
	}{
		{"delivered", http.StatusOK, `{"status":"delivered","transaction_id":"prv-1","token":"1234-5678"}`, StatusDelivered},
		{"success alias", http.StatusOK, `{"status":"success","transaction_id":"prv-2"}`, StatusDelivered},
		{"failed", http.StatusOK, `{"status":"failed","message":"recipient barred"}`, StatusFailed},
		{"declined alias", http.StatusBadRequest, `{"status":"declined"}`, StatusFailed},
		{"initiated is indeterminate", http.StatusOK, `{"status":"initiated","transaction_id":"prv-3"}`, StatusPending},
		{"unknown status is indeterminate", http.StatusOK, `{"status":"queued"}`, StatusPending},
		{"5xx is indeterminate even claiming failed", http.StatusBadGateway, `{"status":"failed"}`, StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdempotency string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdempotency = r.Header.Get("Idempotency-Key")
				w.WriteHeader(tt.httpStatus)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, time.Second, logger.NewNoOpLogger())

			outcome, err := client.Purchase(t.Context(), testRequest())

			require.NoError(t, err)
			require.Equal(t, tt.expectedStatus, outcome.Status)
			require.Equal(t, testRequest().Reference, gotIdempotency, "order reference must be the idempotency key")
			require.JSONEq(t, tt.body, string(outcome.Raw), "raw payload must be kept for audit")
		})
	}
}

func TestClient_Purchase_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client := NewClient(srv.URL, time.Second, logger.NewNoOpLogger())

	_, err := client.Purchase(t.Context(), testRequest())

	require.Error(t, err, "unreachable provider must surface an error, not a failed outcome")
}

func TestClient_Purchase_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, 50*time.Millisecond, logger.NewNoOpLogger())

	start := time.Now()
	_, err := client.Purchase(t.Context(), testRequest())

	require.Error(t, err, "hanging provider must time out")
	require.Less(t, time.Since(start), time.Second, "timeout must be bounded")
}

func TestClient_QueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/purchases/BV-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"delivered","transaction_id":"prv-9"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, logger.NewNoOpLogger())

	outcome, err := client.QueryStatus(t.Context(), "BV-1")

	require.NoError(t, err)
	require.Equal(t, StatusDelivered, outcome.Status)
	require.Equal(t, "prv-9", outcome.ProviderRef)
}
