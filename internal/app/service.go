/**
 * @description
 * This file contains the core business logic of the ATS transfer service. The
 * `Service` struct coordinates the transfer store, the carrier forwarder, the
 * per-carrier status ledger and contract reassignment.
 *
 * Key features:
 * - SubmitTransfer persists a transfer and fans it out to every carrier.
 * - ReleaseTransfer re-sends a stored transfer and marks legs RELEASED.
 * - IngestStatus (status.go) maintains the ledger and triggers reassignment.
 * - ReassignContracts (reassign.go) moves contracts between IMOs.
 *
 * @dependencies
 * - internal/domain, internal/store: domain models and data access.
 * - pkg/rabbitmq: best-effort domain event publishing.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
	"github.com/ats/transfer-service/pkg/rabbitmq"
)

const (
	defaultTransferListLimit = 25
	maxTransferListLimit     = 100
	contractScanPageSize     = 100
)

// SubmitResult is the body returned for an accepted submission.
type SubmitResult struct {
	ID       string               `json:"id"`
	State    domain.TransferState `json:"state"`
	Warnings map[string]string    `json:"warnings,omitempty"`
}

// ReleaseResult is the body returned after releasing a transfer to carriers.
type ReleaseResult struct {
	ID       string            `json:"id"`
	Warnings map[string]string `json:"warnings,omitempty"`
}

// Service provides the core business logic for transfers.
type Service struct {
	repo        store.Repository
	forwarder   *Forwarder
	sideEffects *SideEffects
	producer    rabbitmq.Publisher
	background  sync.WaitGroup
	now         func() time.Time
}

// NewService creates a new transfer service instance.
func NewService(repo store.Repository, forwarder *Forwarder, sideEffects *SideEffects, producer rabbitmq.Publisher) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:        repo,
		forwarder:   forwarder,
		sideEffects: sideEffects,
		producer:    producer,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until background work started by the service has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func validateTransferRequest(req domain.TransferRequest) error {
	if missing := req.MissingFields(); len(missing) > 0 {
		return missingFieldsError(missing)
	}
	if _, err := time.Parse(domain.EffectiveDateLayout, req.EffectiveDate); err != nil {
		return invalidFieldError("effectiveDate", "effectiveDate must be a date in YYYY-MM-DD format")
	}
	if utf8.RuneCountInString(req.Notes) > domain.MaxNotesLength {
		return invalidFieldError("notes", fmt.Sprintf("notes must be at most %d characters", domain.MaxNotesLength))
	}
	return nil
}

// SubmitTransfer validates, persists and forwards a transfer request.
func (s *Service) SubmitTransfer(ctx context.Context, req domain.TransferRequest, idempotencyKey string) (*SubmitResult, error) {
	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}
	if len(s.forwarder.Carriers()) == 0 {
		return nil, ErrNoCarriersConfigured
	}

	record := domain.NewTransferRecord(req, idempotencyKey)
	record.CreatedAt = s.now()
	if err := s.repo.PutTransfer(ctx, &record); err != nil {
		log.Printf("level=error component=service flow=submit_transfer msg=\"persist transfer failed\" transfer_id=%s err=%v", record.ID, err)
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}
	if err := s.repo.PutAgent(ctx, req.Agent); err != nil {
		log.Printf("level=error component=service flow=submit_transfer msg=\"persist agent failed\" npn=%s err=%v", req.Agent.NPN, err)
		return nil, fmt.Errorf("failed to persist agent: %w", err)
	}

	outcome, err := s.forwarder.Forward(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, carrierID := range outcome.Succeeded {
		status := domain.NewCarrierStatusRecord(
			req.ReceivingImo.FEIN,
			req.ReleasingImo.FEIN,
			carrierID,
			req.Agent.NPN,
			domain.CarrierStatusInitiated,
			nil,
		)
		if s.sideEffects.Run(ctx, SideEffectStatusInitiated, status) {
			s.publishStatus(ctx, status)
		}
	}

	log.Printf("level=info component=service flow=submit_transfer msg=\"transfer submitted\" transfer_id=%s carriers_ok=%d warnings=%d", record.ID, len(outcome.Succeeded), len(outcome.Warnings))
	return &SubmitResult{ID: record.ID, State: record.State, Warnings: outcome.Warnings}, nil
}

// ReleaseTransfer re-sends a stored transfer to every carrier and marks each
// accepting carrier's ledger row RELEASED.
func (s *Service) ReleaseTransfer(ctx context.Context, id string) (*ReleaseResult, error) {
	record, err := s.repo.FindTransferByID(ctx, id)
	if err != nil {
		return nil, err
	}

	outcome, err := s.forwarder.Forward(ctx, record.CarrierPayload())
	if err != nil {
		return nil, err
	}

	for _, carrierID := range outcome.Succeeded {
		released := ReleasedStatus{
			ReceivingFEIN: record.ReceivingImo.FEIN,
			ReleasingFEIN: record.ReleasingImo.FEIN,
			CarrierID:     carrierID,
			NPN:           record.Agent.NPN,
		}
		if s.sideEffects.Run(ctx, SideEffectStatusReleased, released) {
			s.publishStatus(ctx, domain.NewCarrierStatusRecord(
				released.ReceivingFEIN, released.ReleasingFEIN, carrierID, released.NPN, domain.CarrierStatusReleased, nil))
		}
	}

	log.Printf("level=info component=service flow=release_transfer msg=\"transfer released\" transfer_id=%s carriers_ok=%d", id, len(outcome.Succeeded))
	return &ReleaseResult{ID: id, Warnings: outcome.Warnings}, nil
}

// GetTransfer loads one transfer record.
func (s *Service) GetTransfer(ctx context.Context, id string) (*domain.TransferRecord, error) {
	return s.repo.FindTransferByID(ctx, id)
}

// ListTransfers returns transfers filtered by npn and state, newest first.
func (s *Service) ListTransfers(ctx context.Context, npn, state string, limit int) ([]domain.TransferRecord, error) {
	state = strings.TrimSpace(state)
	if state != "" && !domain.TransferState(state).Valid() {
		return nil, &ValidationError{
			Code:    CodeInvalidState,
			Message: fmt.Sprintf("Invalid state '%s'", state),
			Fields:  []string{"state"},
		}
	}
	switch {
	case limit <= 0:
		limit = defaultTransferListLimit
	case limit > maxTransferListLimit:
		limit = maxTransferListLimit
	}
	return s.repo.ListTransfers(ctx, store.TransferFilter{
		NPN:   strings.TrimSpace(npn),
		State: domain.TransferState(state),
		Limit: limit,
	})
}

// GetAgent loads an agent from the registry.
func (s *Service) GetAgent(ctx context.Context, npn string) (*domain.Agent, error) {
	return s.repo.FindAgentByNPN(ctx, npn)
}

// ListStatuses returns every ledger row for a receiving IMO.
func (s *Service) ListStatuses(ctx context.Context, receivingFein string) ([]domain.CarrierStatusRecord, error) {
	return s.repo.ListCarrierStatuses(ctx, receivingFein)
}

// ListContracts returns every contract currently owned by fein.
func (s *Service) ListContracts(ctx context.Context, fein string) ([]domain.Contract, error) {
	return s.scanAllContracts(ctx, store.ContractFilter{FEIN: fein})
}

func (s *Service) scanAllContracts(ctx context.Context, filter store.ContractFilter) ([]domain.Contract, error) {
	contracts := make([]domain.Contract, 0)
	cursor := ""
	for {
		page, err := s.repo.ScanContracts(ctx, filter, cursor, contractScanPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contracts: %w", err)
		}
		contracts = append(contracts, page.Items...)
		if page.NextCursor == "" {
			return contracts, nil
		}
		cursor = page.NextCursor
	}
}

func (s *Service) publishStatus(ctx context.Context, record domain.CarrierStatusRecord) {
	event := domain.CarrierStatusUpdatedEvent{
		ReceivingFEIN: record.ReceivingFEIN,
		StatusKey:     record.StatusKey,
		CarrierID:     record.CarrierID,
		Status:        record.Status,
		NPN:           record.NPN,
	}
	if err := s.producer.PublishCarrierStatusUpdated(ctx, event); err != nil {
		log.Printf("level=warn component=service msg=\"carrier status event publish failed\" status_key=%s err=%v", record.StatusKey, err)
	}
}
