// Package provider talks to the third-party fulfillment gateway that
// actually delivers airtime, data bundles, cable subscriptions and
// electricity tokens.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/logger"
)

// Settlement statuses as a closed set, so the three-way branch in the
// orchestrator is an exhaustive switch rather than error-type sniffing.
const (
	StatusDelivered = "DELIVERED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
)

const defaultTimeout = 15 * time.Second

// PurchaseRequest carries everything the gateway needs to fulfill one unit.
// Reference doubles as the idempotency key on the provider side.
type PurchaseRequest struct {
	Reference   string          `json:"reference"`
	ServiceType string          `json:"service_type"`
	Recipient   string          `json:"recipient"`
	ProductCode string          `json:"product_code,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Outcome is the tagged settlement result. Status is always one of the
// constants above; anything the gateway reported that is neither a clear
// success nor a clear failure maps to StatusPending.
type Outcome struct {
	Status      string
	ProviderRef string
	Token       string
	Message     string

	// Raw keeps the gateway payload byte-for-byte for the audit column.
	Raw []byte
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, l logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  l,
	}
}

type gatewayResponse struct {
	Status      string `json:"status"`
	ProviderRef string `json:"transaction_id"`
	Token       string `json:"token,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Purchase submits one fulfillment request. The returned error means the
// outcome is unknown (transport failure, timeout, unparseable body): the
// caller must treat the purchase as indeterminate, never as failed-for-sure.
func (c *Client) Purchase(ctx context.Context, req PurchaseRequest) (Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to encode purchase request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/purchases", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	return c.do(httpReq, req.Reference)
}

// QueryStatus requeries a previously submitted purchase by its reference.
// Used by the reconciler for orders settled defensively.
func (c *Client) QueryStatus(ctx context.Context, reference string) (Outcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/purchases/"+reference, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(httpReq, reference)
}

func (c *Client) do(req *http.Request, reference string) (Outcome, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Provider call did not complete", "reference", reference, "error", err)
		return Outcome{}, fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	buf := &bytes.Buffer{}
	var gw gatewayResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, buf)).Decode(&gw); err != nil {
		c.logger.Warn("Failed to decode provider response", "reference", reference, "error", err)
		return Outcome{}, fmt.Errorf("failed to decode provider response: %w", err)
	}

	outcome := Outcome{
		Status:      mapStatus(resp.StatusCode, gw.Status),
		ProviderRef: gw.ProviderRef,
		Token:       gw.Token,
		Message:     gw.Message,
		Raw:         buf.Bytes(),
	}

	c.logger.Debug("Provider response",
		"reference", reference,
		"http_status", resp.StatusCode,
		"status", outcome.Status,
		"provider_ref", outcome.ProviderRef,
	)

	return outcome, nil
}

// mapStatus folds the gateway's vocabulary into the closed status set.
// Unrecognized statuses and 5xx responses count as indeterminate.
func mapStatus(httpStatus int, gwStatus string) string {
	if httpStatus >= 500 {
		return StatusPending
	}

	switch gwStatus {
	case "delivered", "success", "successful":
		return StatusDelivered
	case "failed", "declined", "rejected":
		return StatusFailed
	default:
		return StatusPending
	}
}
