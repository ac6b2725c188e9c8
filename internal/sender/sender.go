/**
 * @description
 * Package sender pushes signed transfer status events to a webhook receiver.
 * It is the local tool hub operators use to drive a transfer through its
 * states: each send takes a payload template, stamps a fresh event id and
 * timestamp, and chains the previous state to the next one.
 */
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/webhooksig"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWebhookURL = "http://localhost:8080/hooks/ats-status"
	DefaultSecret     = "local-dev-shared-secret"

	defaultTimeout = 30 * time.Second
)

// Template is a decoded payload template. JSON and YAML files are accepted.
type Template map[string]interface{}

// LoadTemplate reads a template and returns it with its current data.state.
func LoadTemplate(path string) (Template, domain.TransferState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("payload file not found: %w", err)
	}

	var template Template
	if err := yaml.Unmarshal(raw, &template); err != nil {
		return nil, "", fmt.Errorf("payload must be a JSON or YAML object: %w", err)
	}
	if template == nil {
		return nil, "", fmt.Errorf("payload must be a JSON or YAML object")
	}

	data, ok := template["data"].(map[string]interface{})
	if !ok {
		return nil, "", fmt.Errorf("payload must include a data object")
	}
	state, _ := data["state"].(string)
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return nil, "", fmt.Errorf("payload data.state must be provided")
	}
	return template, domain.TransferState(state), nil
}

// NewEventID returns an id of the form evt_<32 hex chars>.
func NewEventID() string {
	return "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseState normalizes user input and checks it against the transfer states.
func ParseState(input string) (domain.TransferState, error) {
	state := domain.TransferState(strings.ToUpper(strings.TrimSpace(input)))
	if state == "" {
		return "", fmt.Errorf("status is required")
	}
	if !state.Valid() {
		return "", fmt.Errorf("invalid status %q", input)
	}
	return state, nil
}

// BuildPayload copies the template and sets eventId, occurredAt and the
// previousState/state pair. The template is left untouched.
func BuildPayload(template Template, eventID string, previous, next domain.TransferState, now time.Time) (map[string]interface{}, error) {
	raw, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to copy template: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to copy template: %w", err)
	}

	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("payload must include a data object")
	}

	payload["eventId"] = eventID
	payload["occurredAt"] = now.UTC().Format("2006-01-02T15:04:05Z")
	data["previousState"] = string(previous)
	data["state"] = string(next)
	return payload, nil
}

// Response is what the receiver answered.
type Response struct {
	EventID    string
	StatusCode int
	Status     string
	Body       string
}

// Sender signs and posts events.
type Sender struct {
	url        string
	secret     string
	httpClient *http.Client
}

// New creates a sender for the receiver url.
func New(url, secret string) *Sender {
	return &Sender{
		url:        strings.TrimSpace(url),
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts one payload with the X-ATS-Event-Id and X-ATS-Signature headers.
func (s *Sender) Send(ctx context.Context, payload map[string]interface{}) (*Response, error) {
	eventID, _ := payload["eventId"].(string)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ATS-Event-Id", eventID)
	req.Header.Set("X-ATS-Signature", webhooksig.Header(s.secret, body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &Response{
		EventID:    eventID,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(respBody)),
	}, nil
}

// Session walks one transfer through successive states.
type Session struct {
	sender   *Sender
	template Template
	current  domain.TransferState
	now      func() time.Time
}

// NewSession starts from the template's own data.state.
func NewSession(sender *Sender, template Template, current domain.TransferState) *Session {
	return &Session{sender: sender, template: template, current: current, now: time.Now}
}

// Current returns the state the next event will report as previousState.
func (s *Session) Current() domain.TransferState {
	return s.current
}

// Advance sends next and makes it the current state. The state advances even
// when the receiver rejects the event, matching an operator retyping it.
func (s *Session) Advance(ctx context.Context, next domain.TransferState) (*Response, domain.TransferState, error) {
	previous := s.current
	payload, err := BuildPayload(s.template, NewEventID(), previous, next, s.now())
	if err != nil {
		return nil, previous, err
	}
	resp, err := s.sender.Send(ctx, payload)
	if err != nil {
		return nil, previous, err
	}
	s.current = next
	return resp, previous, nil
}
