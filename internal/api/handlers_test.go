package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ats/transfer-service/internal/app"
	"github.com/ats/transfer-service/internal/dedup"
	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/carrierclient"
	"github.com/ats/transfer-service/pkg/reassignclient"
	"github.com/ats/transfer-service/pkg/servicetoken"
)

const transferBody = `{
	"agent": {"npn": "17439285", "firstName": "Jordan", "lastName": "Miles"},
	"releasingImo": {"fein": "98-7654321", "name": "Legacy IMO Group"},
	"receivingImo": {"fein": "12-3456789", "name": "Summit Partners"},
	"effectiveDate": "2026-03-01",
	"consent": {"agentAttestation": true, "eSignatureRef": "esig-1"}
}`

const internalKey = "internal-test-key"

func carrier(t *testing.T, status int, body string) domain.Carrier {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return domain.Carrier{ID: "carrier-" + strings.TrimPrefix(server.URL, "http://127.0.0.1:"), URL: server.URL}
}

func newTestRouter(repo *memRepo, carriers ...domain.Carrier) http.Handler {
	forwarder := app.NewForwarder(carriers, carrierclient.NewClient(2*time.Second), 4)
	service := app.NewService(repo, forwarder, app.NewSideEffects(repo, nil, nil), nil)
	processor := app.NewWebhookProcessor(dedup.NewMemoryStore(dedup.DefaultTTL, time.Minute), repo, nil, nil)
	return NewRouter(NewHandlers(service), NewWebhookHandler(processor, testSecret), internalKey)
}

func do(t *testing.T, handler http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	return envelope.Error.Code
}

func TestSubmitTransferCreated(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo, carrier(t, http.StatusOK, `{}`))

	rec := do(t, router, http.MethodPost, "/ats/v1/transfers", transferBody, map[string]string{"Idempotency-Key": "k-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result app.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if result.ID != "12-3456789|98-7654321|17439285" || result.State != domain.TransferStateSubmitted {
		t.Fatalf("unexpected result %+v", result)
	}
	if rec.Header().Get("Location") != "/ats/v1/transfers/"+url.PathEscape(result.ID) {
		t.Fatalf("unexpected Location %q", rec.Header().Get("Location"))
	}

	get := do(t, router, http.MethodGet, rec.Header().Get("Location"), "", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected stored transfer to be readable, got %d", get.Code)
	}
	agent := do(t, router, http.MethodGet, "/ats/v1/agents/17439285", "", nil)
	if agent.Code != http.StatusOK {
		t.Fatalf("expected agent to be registered, got %d", agent.Code)
	}
}

func TestSubmitTransferAllCarriersFailRelaysFirstResponse(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo,
		carrier(t, http.StatusConflict, `{"message":"duplicate transfer"}`),
		carrier(t, http.StatusServiceUnavailable, `down`),
	)

	rec := do(t, router, http.MethodPost, "/ats/v1/transfers", transferBody, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected relayed 409, got %d", rec.Code)
	}
	if rec.Body.String() != `{"message":"duplicate transfer"}` {
		t.Fatalf("expected verbatim carrier body, got %s", rec.Body.String())
	}
}

func TestSubmitTransferErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		carriers int
		wantCode int
		wantErr  string
	}{
		{name: "invalid json", body: `{`, carriers: 1, wantCode: http.StatusBadRequest, wantErr: CodeInvalidJSON},
		{name: "missing fields", body: `{"agent":{"npn":"1"}}`, carriers: 1, wantCode: http.StatusBadRequest, wantErr: app.CodeMissingFields},
		{name: "no carriers", body: transferBody, carriers: 0, wantCode: http.StatusInternalServerError, wantErr: CodeNoCarriersConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var carriers []domain.Carrier
			for i := 0; i < tt.carriers; i++ {
				carriers = append(carriers, carrier(t, http.StatusOK, `{}`))
			}
			rec := do(t, newTestRouter(newMemRepo(), carriers...), http.MethodPost, "/ats/v1/transfers", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantErr {
				t.Fatalf("expected %s, got %s", tt.wantErr, code)
			}
		})
	}
}

func TestGetTransferNotFound(t *testing.T) {
	rec := do(t, newTestRouter(newMemRepo()), http.MethodGet, "/ats/v1/transfers/nope", "", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != CodeNotFound {
		t.Fatalf("expected 404 NOT_FOUND, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListTransfersRejectsBadQuery(t *testing.T) {
	router := newTestRouter(newMemRepo())

	rec := do(t, router, http.MethodGet, "/ats/v1/transfers?state=DONE", "", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != app.CodeInvalidState {
		t.Fatalf("expected INVALID_STATE, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodGet, "/ats/v1/transfers?limit=ten", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric limit, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/ats/v1/transfers", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestIngestStatus(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo)

	bogus := `{"receivingFein":"12-3456789","releasingFein":"98-7654321","carrierId":"allianz","status":"BOGUS","npn":"17439285"}`
	rec := do(t, router, http.MethodPost, "/ats/v1/status", bogus, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != app.CodeInvalidStatus {
		t.Fatalf("expected INVALID_STATUS, got %d %s", rec.Code, rec.Body.String())
	}

	valid := strings.Replace(bogus, "BOGUS", "PENDING", 1)
	rec = do(t, router, http.MethodPost, "/ats/v1/status", valid, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var record domain.CarrierStatusRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &record)
	if record.StatusKey != "allianz#17439285#98-7654321" || record.Status != domain.CarrierStatusPending {
		t.Fatalf("unexpected echo %+v", record)
	}

	list := do(t, router, http.MethodGet, "/ats/v1/status/12-3456789", "", nil)
	var rows []domain.CarrierStatusRecord
	_ = json.Unmarshal(list.Body.Bytes(), &rows)
	if list.Code != http.StatusOK || len(rows) != 1 {
		t.Fatalf("expected one row, got %d %s", list.Code, list.Body.String())
	}
}

func TestReassignRequiresServiceToken(t *testing.T) {
	repo := newMemRepo()
	repo.contracts = []domain.Contract{
		{ID: "ct-1", FEIN: "98-7654321", CarrierID: "allianz", NPN: "17439285"},
		{ID: "ct-2", FEIN: "98-7654321", CarrierID: "allianz", NPN: "17439285"},
	}
	router := newTestRouter(repo)
	body := `{"carrierId":"allianz","npn":"17439285","receivingFein":"12-3456789","releasingFein":"98-7654321"}`

	rec := do(t, router, http.MethodPost, "/internal/contracts/reassign", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	wrong, _ := servicetoken.Issue("other-key", reassignclient.Audience, time.Minute)
	rec = do(t, router, http.MethodPost, "/internal/contracts/reassign", body, map[string]string{"Authorization": "Bearer " + wrong})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign token, got %d", rec.Code)
	}

	token, err := servicetoken.Issue(internalKey, reassignclient.Audience, time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec = do(t, router, http.MethodPost, "/internal/contracts/reassign", body, auth)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"updatedCount":2}` {
		t.Fatalf("expected updatedCount 2, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/internal/contracts/reassign", body, auth)
	if strings.TrimSpace(rec.Body.String()) != `{"updatedCount":0}` {
		t.Fatalf("expected a rerun to update nothing, got %s", rec.Body.String())
	}

	contracts := do(t, router, http.MethodGet, "/ats/v1/contracts/12-3456789", "", nil)
	var moved []domain.Contract
	_ = json.Unmarshal(contracts.Body.Bytes(), &moved)
	if len(moved) != 2 {
		t.Fatalf("expected both contracts under the receiving IMO, got %d", len(moved))
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(newMemRepo()), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}
