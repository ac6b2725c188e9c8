/**
 * @description
 * HTTP handlers for the ATS transfer API: transfer submission and release,
 * status ingestion, and the read endpoints over transfers, statuses,
 * contracts and agents.
 */

package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ats/transfer-service/internal/app"
	"github.com/ats/transfer-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Handlers holds the dependencies of the ATS API handlers.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates the handler set.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

// pathParam reads and unescapes a chi URL parameter. Transfer ids contain '|',
// which clients send percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	value, err := url.PathUnescape(raw)
	if err != nil {
		value = raw
	}
	return strings.TrimSpace(value)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON payload")
		return false
	}
	return true
}

// SubmitTransferHandler handles POST /ats/v1/transfers.
func (h *Handlers) SubmitTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.SubmitTransfer(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeServiceError(w, "submit_transfer", err)
		return
	}

	w.Header().Set("Location", "/ats/v1/transfers/"+url.PathEscape(result.ID))
	writeJSON(w, http.StatusCreated, result)
}

// ReleaseTransferHandler handles POST /ats/v1/transfers/{id}/release.
func (h *Handlers) ReleaseTransferHandler(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeMissingPathParam, "id path parameter is required")
		return
	}

	result, err := h.service.ReleaseTransfer(r.Context(), id)
	if err != nil {
		writeServiceError(w, "release_transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTransferHandler handles GET /ats/v1/transfers/{id}.
func (h *Handlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeMissingPathParam, "id path parameter is required")
		return
	}

	record, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get_transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListTransfersHandler handles GET /ats/v1/transfers?npn=&state=&limit=.
func (h *Handlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, app.CodeInvalidField, "limit must be an integer")
			return
		}
		limit = parsed
	}

	records, err := h.service.ListTransfers(r.Context(), query.Get("npn"), query.Get("state"), limit)
	if err != nil {
		writeServiceError(w, "list_transfers", err)
		return
	}
	if records == nil {
		records = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// IngestStatusHandler handles POST /ats/v1/status.
func (h *Handlers) IngestStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := h.service.IngestStatus(r.Context(), req)
	if err != nil {
		writeServiceError(w, "ingest_status", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListStatusesHandler handles GET /ats/v1/status/{fein}.
func (h *Handlers) ListStatusesHandler(w http.ResponseWriter, r *http.Request) {
	fein := pathParam(r, "fein")
	if fein == "" {
		writeError(w, http.StatusBadRequest, CodeMissingPathParam, "fein path parameter is required")
		return
	}

	records, err := h.service.ListStatuses(r.Context(), fein)
	if err != nil {
		writeServiceError(w, "list_statuses", err)
		return
	}
	if records == nil {
		records = []domain.CarrierStatusRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ListContractsHandler handles GET /ats/v1/contracts/{fein}.
func (h *Handlers) ListContractsHandler(w http.ResponseWriter, r *http.Request) {
	fein := pathParam(r, "fein")
	if fein == "" {
		writeError(w, http.StatusBadRequest, CodeMissingPathParam, "fein path parameter is required")
		return
	}

	contracts, err := h.service.ListContracts(r.Context(), fein)
	if err != nil {
		writeServiceError(w, "list_contracts", err)
		return
	}
	if contracts == nil {
		contracts = []domain.Contract{}
	}
	writeJSON(w, http.StatusOK, contracts)
}

// GetAgentHandler handles GET /ats/v1/agents/{npn}.
func (h *Handlers) GetAgentHandler(w http.ResponseWriter, r *http.Request) {
	npn := pathParam(r, "npn")
	if npn == "" {
		writeError(w, http.StatusBadRequest, CodeMissingPathParam, "npn path parameter is required")
		return
	}

	agent, err := h.service.GetAgent(r.Context(), npn)
	if err != nil {
		writeServiceError(w, "get_agent", err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// ReassignContractsHandler handles POST /internal/contracts/reassign.
func (h *Handlers) ReassignContractsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReassignContractsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.service.ReassignContracts(r.Context(), req)
	if err != nil {
		writeServiceError(w, "reassign_contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updatedCount": updated})
}
