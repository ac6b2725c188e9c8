package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
	"github.com/google/uuid"
)

type stubRepo struct {
	store.Repository

	mu        sync.Mutex
	transfers map[string]domain.TransferRecord
	agents    map[string]domain.Agent
	statuses  map[string]domain.CarrierStatusRecord
	contracts []domain.Contract
	outbox    []store.OutboxMessage
	delivered []uuid.UUID
	failed    map[uuid.UUID]int
	applied   []domain.TransferStatusUpdate
	pageSize  int
	scans     int

	putTransferErr error
	putStatusErr   error
	applyErr       error
	findErr        error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		transfers: map[string]domain.TransferRecord{},
		agents:    map[string]domain.Agent{},
		statuses:  map[string]domain.CarrierStatusRecord{},
		failed:    map[uuid.UUID]int{},
	}
}

func (r *stubRepo) PutTransfer(ctx context.Context, record *domain.TransferRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putTransferErr != nil {
		return r.putTransferErr
	}
	r.transfers[record.ID] = *record
	return nil
}

func (r *stubRepo) FindTransferByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	record, ok := r.transfers[id]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	return &record, nil
}

func (r *stubRepo) ListTransfers(ctx context.Context, filter store.TransferFilter) ([]domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransferRecord
	for _, record := range r.transfers {
		if filter.NPN != "" && record.Agent.NPN != filter.NPN {
			continue
		}
		if filter.State != "" && record.State != filter.State {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *stubRepo) ApplyTransferStatus(ctx context.Context, update domain.TransferStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return r.applyErr
	}
	r.applied = append(r.applied, update)
	record := r.transfers[update.TransferID]
	record.ID = update.TransferID
	record.State = update.State
	eventID := update.EventID
	record.LastEventID = &eventID
	record.ReasonCodes = update.ReasonCodes
	updatedAt := update.UpdatedAt
	record.UpdatedAt = &updatedAt
	r.transfers[update.TransferID] = record
	return nil
}

func (r *stubRepo) PutAgent(ctx context.Context, agent domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.NPN] = agent
	return nil
}

func (r *stubRepo) FindAgentByNPN(ctx context.Context, npn string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[npn]
	if !ok {
		return nil, store.ErrAgentNotFound
	}
	return &agent, nil
}

func (r *stubRepo) PutCarrierStatus(ctx context.Context, record domain.CarrierStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putStatusErr != nil {
		return r.putStatusErr
	}
	r.statuses[record.ReceivingFEIN+"/"+record.StatusKey] = record
	return nil
}

func (r *stubRepo) MarkCarrierStatusReleased(ctx context.Context, receivingFein, releasingFein, carrierID, npn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putStatusErr != nil {
		return r.putStatusErr
	}
	key := receivingFein + "/" + domain.StatusKey(carrierID, npn, releasingFein)
	record, ok := r.statuses[key]
	if !ok {
		record = domain.NewCarrierStatusRecord(receivingFein, releasingFein, carrierID, npn, "", nil)
	}
	record.Status = domain.CarrierStatusReleased
	r.statuses[key] = record
	return nil
}

func (r *stubRepo) ListCarrierStatuses(ctx context.Context, receivingFein string) ([]domain.CarrierStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CarrierStatusRecord
	for _, record := range r.statuses {
		if record.ReceivingFEIN == receivingFein {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusKey < out[j].StatusKey })
	return out, nil
}

func (r *stubRepo) status(receivingFein, carrierID, npn, releasingFein string) (domain.CarrierStatusRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.statuses[receivingFein+"/"+domain.StatusKey(carrierID, npn, releasingFein)]
	return record, ok
}

func (r *stubRepo) ScanContracts(ctx context.Context, filter store.ContractFilter, cursor string, limit int) (store.ContractPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans++

	afterID, err := store.DecodeCursor(cursor)
	if err != nil {
		return store.ContractPage{}, err
	}
	if r.pageSize > 0 && r.pageSize < limit {
		limit = r.pageSize
	}

	sorted := append([]domain.Contract(nil), r.contracts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var page store.ContractPage
	for _, c := range sorted {
		if c.ID <= afterID {
			continue
		}
		if (filter.CarrierID != "" && c.CarrierID != filter.CarrierID) ||
			(filter.NPN != "" && c.NPN != filter.NPN) ||
			(filter.FEIN != "" && c.FEIN != filter.FEIN) {
			continue
		}
		if len(page.Items) == limit {
			page.NextCursor = store.EncodeCursor(page.Items[limit-1].ID)
			break
		}
		page.Items = append(page.Items, c)
	}
	return page, nil
}

func (r *stubRepo) UpdateContractFEIN(ctx context.Context, contractID, expectedFein, newFein string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.contracts {
		if r.contracts[i].ID == contractID && r.contracts[i].FEIN == expectedFein {
			r.contracts[i].FEIN = newFein
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) EnqueueOutbox(ctx context.Context, message store.OutboxMessage, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	r.outbox = append(r.outbox, message)
	return nil
}

func (r *stubRepo) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claimed := make([]store.OutboxMessage, 0, len(r.outbox))
	for _, message := range r.outbox {
		message.Attempts++
		claimed = append(claimed, message)
	}
	r.outbox = nil
	return claimed, nil
}

func (r *stubRepo) MarkOutboxDelivered(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, id)
	return nil
}

func (r *stubRepo) MarkOutboxFailed(ctx context.Context, id uuid.UUID, retryAfterSeconds int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = retryAfterSeconds
	return nil
}

type stubReassigner struct {
	mu       sync.Mutex
	requests []domain.ReassignContractsRequest
	err      error
}

func (s *stubReassigner) Reassign(ctx context.Context, request domain.ReassignContractsRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request)
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func (s *stubReassigner) calls() []domain.ReassignContractsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReassignContractsRequest(nil), s.requests...)
}

type stubPublisher struct {
	mu           sync.Mutex
	stateChanges []domain.TransferStateChangedEvent
	statuses     []domain.CarrierStatusUpdatedEvent
}

func (p *stubPublisher) PublishTransferStateChanged(ctx context.Context, event domain.TransferStateChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateChanges = append(p.stateChanges, event)
	return nil
}

func (p *stubPublisher) PublishCarrierStatusUpdated(ctx context.Context, event domain.CarrierStatusUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, event)
	return nil
}

func (p *stubPublisher) Close() {}

var errStoreDown = errors.New("store unavailable")
