package api

import (
	"context"
	"sync"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
)

type memRepo struct {
	store.Repository

	mu        sync.Mutex
	transfers map[string]domain.TransferRecord
	agents    map[string]domain.Agent
	statuses  map[string]domain.CarrierStatusRecord
	contracts []domain.Contract
	applies   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		transfers: map[string]domain.TransferRecord{},
		agents:    map[string]domain.Agent{},
		statuses:  map[string]domain.CarrierStatusRecord{},
	}
}

func (r *memRepo) PutTransfer(ctx context.Context, record *domain.TransferRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[record.ID] = *record
	return nil
}

func (r *memRepo) FindTransferByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.transfers[id]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	return &record, nil
}

func (r *memRepo) ListTransfers(ctx context.Context, filter store.TransferFilter) ([]domain.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransferRecord
	for _, record := range r.transfers {
		if filter.NPN != "" && record.Agent.NPN != filter.NPN {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *memRepo) ApplyTransferStatus(ctx context.Context, update domain.TransferStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applies++
	record := r.transfers[update.TransferID]
	record.ID = update.TransferID
	record.State = update.State
	eventID := update.EventID
	record.LastEventID = &eventID
	record.ReasonCodes = update.ReasonCodes
	record.PreviousState = update.PreviousState
	r.transfers[update.TransferID] = record
	return nil
}

func (r *memRepo) PutAgent(ctx context.Context, agent domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.NPN] = agent
	return nil
}

func (r *memRepo) FindAgentByNPN(ctx context.Context, npn string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[npn]
	if !ok {
		return nil, store.ErrAgentNotFound
	}
	return &agent, nil
}

func (r *memRepo) PutCarrierStatus(ctx context.Context, record domain.CarrierStatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[record.ReceivingFEIN+"/"+record.StatusKey] = record
	return nil
}

func (r *memRepo) ListCarrierStatuses(ctx context.Context, receivingFein string) ([]domain.CarrierStatusRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CarrierStatusRecord
	for _, record := range r.statuses {
		if record.ReceivingFEIN == receivingFein {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memRepo) ScanContracts(ctx context.Context, filter store.ContractFilter, cursor string, limit int) (store.ContractPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var page store.ContractPage
	for _, c := range r.contracts {
		if (filter.CarrierID == "" || c.CarrierID == filter.CarrierID) &&
			(filter.NPN == "" || c.NPN == filter.NPN) &&
			(filter.FEIN == "" || c.FEIN == filter.FEIN) {
			page.Items = append(page.Items, c)
		}
	}
	return page, nil
}

func (r *memRepo) UpdateContractFEIN(ctx context.Context, contractID, expectedFein, newFein string) (bool, error) {
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
