/**
 * @description
 * Client for pushing transfer payloads to a single carrier endpoint. Every call
 * yields a Result; transport failures are folded into a synthetic 502 result so
 * callers aggregate one shape.
 */
package carrierclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20

	// ForwardFailedCode is the error code used when a carrier cannot be reached.
	ForwardFailedCode = "FORWARD_FAILED"
)

// Result is the outcome of one carrier push.
type Result struct {
	CarrierID  string
	StatusCode int
	Body       []byte
	// TransportErr is set when no HTTP response was received.
	TransportErr error
}

// OK reports whether the carrier accepted the payload.
func (r Result) OK() bool {
	return r.TransportErr == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client posts JSON bodies to carrier endpoints.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a carrier client with a per-call timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Post sends body to url and classifies the outcome.
func (c *Client) Post(ctx context.Context, carrierID, url string, body []byte) Result {
	result := Result{CarrierID: carrierID}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return transportFailure(result, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(result, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure(result, fmt.Errorf("failed to read response: %w", err))
	}

	result.StatusCode = resp.StatusCode
	result.Body = payload
	return result
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func transportFailure(result Result, err error) Result {
	var envelope errorEnvelope
	envelope.Error.Code = ForwardFailedCode
	envelope.Error.Message = err.Error()
	body, _ := json.Marshal(envelope)

	result.StatusCode = http.StatusBadGateway
	result.Body = body
	result.TransportErr = err
	return result
}
