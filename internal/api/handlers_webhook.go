/**
 * @description
 * HTTP handler for transfer status push notifications from the ATS hub.
 *
 * Checks run in a fixed order: receiver configuration, signature header, event
 * id header, HMAC over the raw body, JSON decoding, payload shape. Only then is
 * the event handed to the processor for de-duplication and apply.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/ats/transfer-service/internal/app"
	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/webhooksig"
)

const (
	SignatureHeader = "X-ATS-Signature"
	EventIDHeader   = "X-ATS-Event-Id"

	maxWebhookBodyBytes = 1 << 20
)

// Webhook error codes.
const (
	CodeReceiverNotConfigured = "RECEIVER_NOT_CONFIGURED"
	CodeMissingSignature      = "MISSING_SIGNATURE"
	CodeMissingEventID        = "MISSING_EVENT_ID"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
)

// WebhookHandler processes incoming status webhooks.
type WebhookHandler struct {
	processor *app.WebhookProcessor
	secret    string
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(processor *app.WebhookProcessor, secret string) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: strings.TrimSpace(secret)}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		log.Printf("level=error component=webhook msg=\"ATS_WEBHOOK_SECRET is not configured\"")
		writeError(w, http.StatusInternalServerError, CodeReceiverNotConfigured, "Receiver is not configured.")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if strings.TrimSpace(signature) == "" {
		writeError(w, http.StatusUnauthorized, CodeMissingSignature, "Missing X-ATS-Signature.")
		return
	}

	eventID := strings.TrimSpace(r.Header.Get(EventIDHeader))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, CodeMissingEventID, "Missing X-ATS-Event-Id header.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, app.CodeInvalidPayload, "Cannot read request body.")
		return
	}

	if !webhooksig.Verify(h.secret, body, signature) {
		log.Printf("level=warn component=webhook outcome=reject reason=invalid_signature event_id=%s", eventID)
		writeError(w, http.StatusUnauthorized, CodeInvalidSignature, "Invalid signature.")
		return
	}

	var event domain.TransferStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON payload.")
		return
	}
	if err := event.Validate(eventID); err != nil {
		writeError(w, http.StatusBadRequest, app.CodeInvalidPayload, validationMessage(err))
		return
	}

	result, err := h.processor.Process(r.Context(), &event)
	if err != nil {
		if errors.Is(err, app.ErrIllegalTransition) {
			writeError(w, http.StatusConflict, CodeIllegalTransition, err.Error())
			return
		}
		log.Printf("level=error component=webhook outcome=failed event_id=%s transfer_id=%s err=%v", eventID, event.Data.TransferID, err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to process event.")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedEventType):
		return "Unsupported eventType."
	case errors.Is(err, domain.ErrEventIDMismatch):
		return "Header event id does not match payload eventId."
	case errors.Is(err, domain.ErrEventDataNotObject):
		return "Payload data must be an object."
	case errors.Is(err, domain.ErrEventMissingTransfer):
		return "Payload data.transferId is required."
	case errors.Is(err, domain.ErrEventMissingState):
		return "Payload data.state is required."
	}
	return "Invalid payload."
}
