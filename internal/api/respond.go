package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ats/transfer-service/internal/app"
	"github.com/ats/transfer-service/internal/store"
)

// Error codes owned by the HTTP layer. Validation codes come from app.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeNoCarriersConfigured = "NO_CARRIERS_CONFIGURED"
	CodeIllegalTransition    = "ILLEGAL_TRANSITION"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeMissingPathParam     = "MISSING_PATH_PARAMETER"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes the {"error":{"code","message"}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeServiceError maps an app or store error onto a response. endpoint is
// only used for logging.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var validationErr *app.ValidationError
	var forwardErr *app.ForwardError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Code, validationErr.Message)
	case errors.As(err, &forwardErr):
		// Every carrier failed: relay the first configured carrier's answer as is.
		log.Printf("level=warn component=api endpoint=%s outcome=forward_failed carrier=%s status=%d", endpoint, forwardErr.CarrierID, forwardErr.StatusCode)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(forwardErr.StatusCode)
		w.Write(forwardErr.Body)
	case errors.Is(err, store.ErrTransferNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Transfer not found")
	case errors.Is(err, store.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Agent not found")
	case errors.Is(err, app.ErrNoCarriersConfigured):
		log.Printf("level=error component=api endpoint=%s outcome=failed reason=no_carriers", endpoint)
		writeError(w, http.StatusInternalServerError, CodeNoCarriersConfigured, "No carrier endpoints are configured")
	case errors.Is(err, app.ErrIllegalTransition):
		writeError(w, http.StatusConflict, CodeIllegalTransition, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
