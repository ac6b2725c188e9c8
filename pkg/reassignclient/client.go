/**
 * @description
 * Client for triggering contract reassignment over HTTP. Ingestion calls it
 * when a carrier reports COMPLETED. Requests carry a bearer service token.
 */
package reassignclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/servicetoken"
)

// Audience is the aud claim expected by the reassignment route.
const Audience = "contracts.reassign"

type reassignResponse struct {
	UpdatedCount int `json:"updatedCount"`
}

// Client calls the reassignment endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a reassignment client for the full endpoint url.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        strings.TrimSpace(url),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a target url is set.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Reassign posts the request and returns the number of contracts moved.
func (c *Client) Reassign(ctx context.Context, request domain.ReassignContractsRequest) (int, error) {
	if !c.Configured() {
		return 0, fmt.Errorf("reassign contracts url is not configured")
	}

	body, err := json.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		token, err := servicetoken.Issue(c.apiKey, Audience, time.Minute)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("reassign contracts returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var result reassignResponse
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &result); err != nil {
			return 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return result.UpdatedCount, nil
}
