package sender

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/webhooksig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateJSON = `{
  "eventId": "evt_template",
  "eventType": "transfer.status.updated",
  "source": "centralized-hub",
  "data": {"transferId": "tr_abc123", "state": "submitted", "npn": "17439285"}
}`

type receivedEvent struct {
	header  http.Header
	payload map[string]interface{}
}

type fakeReceiver struct {
	mu     sync.Mutex
	events []receivedEvent
	server *httptest.Server
}

func newFakeReceiver(t *testing.T, secret string) *fakeReceiver {
	t.Helper()
	receiver := &fakeReceiver{}
	receiver.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !webhooksig.Verify(secret, body, r.Header.Get("X-ATS-Signature")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)

		receiver.mu.Lock()
		receiver.events = append(receiver.events, receivedEvent{header: r.Header.Clone(), payload: payload})
		receiver.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"processed"}`))
	}))
	t.Cleanup(receiver.server.Close)
	return receiver
}

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTemplate(t *testing.T) {
	template, state, err := LoadTemplate(writeTemplate(t, "payload.json", templateJSON))
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateSubmitted, state)
	assert.Equal(t, "transfer.status.updated", template["eventType"])

	yamlTemplate := "eventType: transfer.status.updated\ndata:\n  transferId: tr_yaml\n  state: VALIDATION\n"
	_, state, err = LoadTemplate(writeTemplate(t, "payload.yaml", yamlTemplate))
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateValidation, state)

	_, _, err = LoadTemplate(writeTemplate(t, "nodata.json", `{"eventType":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data object")

	_, _, err = LoadTemplate(writeTemplate(t, "nostate.json", `{"data":{"transferId":"tr"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.state")

	_, _, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestBuildPayloadLeavesTemplateUntouched(t *testing.T) {
	template, _, err := LoadTemplate(writeTemplate(t, "payload.json", templateJSON))
	require.NoError(t, err)

	now := time.Date(2026, 2, 24, 20, 9, 12, 0, time.UTC)
	payload, err := BuildPayload(template, "evt_1", domain.TransferStateSubmitted, domain.TransferStateProcessing, now)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", payload["eventId"])
	assert.Equal(t, "2026-02-24T20:09:12Z", payload["occurredAt"])
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, "SUBMITTED", data["previousState"])
	assert.Equal(t, "PROCESSING", data["state"])
	assert.Equal(t, "tr_abc123", data["transferId"])

	assert.Equal(t, "evt_template", template["eventId"])
	_, hasPrevious := template["data"].(map[string]interface{})["previousState"]
	assert.False(t, hasPrevious)
}

func TestNewEventID(t *testing.T) {
	id := NewEventID()
	assert.Regexp(t, regexp.MustCompile(`^evt_[0-9a-f]{32}$`), id)
	assert.NotEqual(t, id, NewEventID())
}

func TestParseState(t *testing.T) {
	state, err := ParseState(" processing ")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateProcessing, state)

	_, err = ParseState("")
	require.Error(t, err)
	_, err = ParseState("DONE")
	require.Error(t, err)
}

func TestSendCommandChainsStates(t *testing.T) {
	receiver := newFakeReceiver(t, "cli-secret")
	path := writeTemplate(t, "payload.json", templateJSON)

	buf := &bytes.Buffer{}
	cmd := NewSendCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--url", receiver.server.URL, "--secret", "cli-secret", "--state", "validation", "--state", "PROCESSING"})

	require.NoError(t, cmd.Execute())

	require.Len(t, receiver.events, 2)
	first := receiver.events[0]
	second := receiver.events[1]

	assert.Equal(t, first.payload["eventId"], first.header.Get("X-ATS-Event-Id"))
	assert.True(t, strings.HasPrefix(first.header.Get("X-ATS-Signature"), "sha256="))
	assert.NotEqual(t, first.payload["eventId"], second.payload["eventId"])

	firstData := first.payload["data"].(map[string]interface{})
	secondData := second.payload["data"].(map[string]interface{})
	assert.Equal(t, "SUBMITTED", firstData["previousState"])
	assert.Equal(t, "VALIDATION", firstData["state"])
	assert.Equal(t, "VALIDATION", secondData["previousState"])
	assert.Equal(t, "PROCESSING", secondData["state"])

	output := buf.String()
	assert.Contains(t, output, "PreviousState: VALIDATION")
	assert.Contains(t, output, "200 OK")
}

func TestSendCommandRejectsUnknownStateBeforeSending(t *testing.T) {
	receiver := newFakeReceiver(t, "cli-secret")
	path := writeTemplate(t, "payload.json", templateJSON)

	cmd := NewSendCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--url", receiver.server.URL, "--state", "VALIDATION", "--state", "DONE"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
	assert.Empty(t, receiver.events)
}

func TestSendCommandInteractive(t *testing.T) {
	receiver := newFakeReceiver(t, "cli-secret")
	path := writeTemplate(t, "payload.json", templateJSON)

	out := &bytes.Buffer{}
	cmd := NewSendCommand()
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("bogus\nwithdrawn\n"))
	cmd.SetArgs([]string{path, "--url", receiver.server.URL, "--secret", "cli-secret"})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Invalid status")
	require.Len(t, receiver.events, 1)
	data := receiver.events[0].payload["data"].(map[string]interface{})
	assert.Equal(t, "WITHDRAWN", data["state"])
}

func TestSendCommandRequiresPayloadFile(t *testing.T) {
	cmd := NewSendCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
