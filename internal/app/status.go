package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ats/transfer-service/internal/domain"
)

// reassignTimeout bounds the detached reassignment trigger.
const reassignTimeout = 60 * time.Second

// IngestStatus validates and stores one carrier status report. A COMPLETED
// report triggers contract reassignment in the background; the caller never
// waits for it and never sees its failure.
func (s *Service) IngestStatus(ctx context.Context, req domain.StatusUpdateRequest) (*domain.CarrierStatusRecord, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, missingFieldsError(missing)
	}
	if !req.Status.Valid() {
		return nil, invalidStatusError(req.Status)
	}

	record := domain.NewCarrierStatusRecord(req.ReceivingFEIN, req.ReleasingFEIN, req.CarrierID, req.NPN, req.Status, req.Requirements)
	if err := s.repo.PutCarrierStatus(ctx, record); err != nil {
		log.Printf("level=error component=service flow=ingest_status msg=\"ledger write failed\" status_key=%s err=%v", record.StatusKey, err)
		return nil, fmt.Errorf("failed to store carrier status: %w", err)
	}
	log.Printf("level=info component=service flow=ingest_status msg=\"status stored\" receiving_fein=%s status_key=%s status=%s", record.ReceivingFEIN, record.StatusKey, record.Status)
	s.publishStatus(ctx, record)

	if record.Status == domain.CarrierStatusCompleted && s.sideEffects.CanReassign() {
		s.triggerReassignment(domain.ReassignContractsRequest{
			CarrierID:     record.CarrierID,
			NPN:           record.NPN,
			ReceivingFEIN: record.ReceivingFEIN,
			ReleasingFEIN: record.ReleasingFEIN,
		})
	}
	return &record, nil
}

func (s *Service) triggerReassignment(request domain.ReassignContractsRequest) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reassignTimeout)
		defer cancel()
		s.sideEffects.Run(ctx, SideEffectReassign, request)
	}()
}
