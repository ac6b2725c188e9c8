package app

import (
	"context"
	"fmt"
	"log"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
)

// ReassignContracts moves every contract of (carrierId, npn) owned by the
// releasing IMO to the receiving IMO. Matches are collected with a full
// paginated scan first, then each row is updated only if it is still owned by
// the releasing IMO, so a second run reports zero.
func (s *Service) ReassignContracts(ctx context.Context, req domain.ReassignContractsRequest) (int, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return 0, missingFieldsError(missing)
	}

	matches, err := s.scanAllContracts(ctx, store.ContractFilter{
		CarrierID: req.CarrierID,
		NPN:       req.NPN,
		FEIN:      req.ReleasingFEIN,
	})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, contract := range matches {
		changed, err := s.repo.UpdateContractFEIN(ctx, contract.ID, req.ReleasingFEIN, req.ReceivingFEIN)
		if err != nil {
			log.Printf("level=error component=service flow=reassign_contracts msg=\"contract update failed\" contract_id=%s updated_so_far=%d err=%v", contract.ID, updated, err)
			return updated, fmt.Errorf("failed to reassign contract %s: %w", contract.ID, err)
		}
		if changed {
			updated++
		}
	}

	log.Printf("level=info component=service flow=reassign_contracts msg=\"contracts reassigned\" carrier=%s npn=%s from=%s to=%s matched=%d updated=%d",
		req.CarrierID, req.NPN, req.ReleasingFEIN, req.ReceivingFEIN, len(matches), updated)
	return updated, nil
}
