/**
 * @description
 * This file defines the repository interfaces the ATS service depends on. The
 * records live in an external store; by programming against these interfaces
 * the application layer stays independent of PostgreSQL and is easy to stub in
 * tests.
 *
 * @dependencies
 * - github.com/google/uuid: outbox message identifiers.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ats/transfer-service/internal/domain"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrInvalidCursor    = errors.New("invalid continuation token")
)

// TransferFilter narrows a transfer listing. Empty fields do not filter.
type TransferFilter struct {
	NPN   string
	State domain.TransferState
	Limit int
}

// TransferRepository stores one row per transfer request.
type TransferRepository interface {
	// PutTransfer overwrites the whole record (last write wins).
	PutTransfer(ctx context.Context, record *domain.TransferRecord) error
	FindTransferByID(ctx context.Context, id string) (*domain.TransferRecord, error)
	// ListTransfers returns the newest transfers first.
	ListTransfers(ctx context.Context, filter TransferFilter) ([]domain.TransferRecord, error)
	// ApplyTransferStatus writes the status-event projection and state. A record
	// that does not exist yet is created with only those fields set.
	ApplyTransferStatus(ctx context.Context, update domain.TransferStatusUpdate) error
}

// AgentRepository is the registry of agents seen on submissions.
type AgentRepository interface {
	PutAgent(ctx context.Context, agent domain.Agent) error
	FindAgentByNPN(ctx context.Context, npn string) (*domain.Agent, error)
}

// StatusRepository is the per-carrier status ledger.
type StatusRepository interface {
	// PutCarrierStatus overwrites the full row, requirements included.
	PutCarrierStatus(ctx context.Context, record domain.CarrierStatusRecord) error
	// MarkCarrierStatusReleased only touches the status field of the row.
	MarkCarrierStatusReleased(ctx context.Context, receivingFein, releasingFein, carrierID, npn string) error
	ListCarrierStatuses(ctx context.Context, receivingFein string) ([]domain.CarrierStatusRecord, error)
}

// ContractFilter narrows a contract scan. Empty fields do not filter.
type ContractFilter struct {
	CarrierID string
	NPN       string
	FEIN      string
}

// ContractPage is one page of a contract scan. An empty NextCursor means the
// scan is complete.
type ContractPage struct {
	Items      []domain.Contract
	NextCursor string
}

// ContractRepository scans and rewrites contract affiliation.
type ContractRepository interface {
	ScanContracts(ctx context.Context, filter ContractFilter, cursor string, limit int) (ContractPage, error)
	// UpdateContractFEIN sets fein=newFein only while the row still has
	// expectedFein. It reports whether a row changed.
	UpdateContractFEIN(ctx context.Context, contractID, expectedFein, newFein string) (bool, error)
}

// OutboxMessage is a side effect waiting for (re)delivery.
type OutboxMessage struct {
	ID        uuid.UUID
	Kind      string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// OutboxRepository persists side effects that failed on the request path.
type OutboxRepository interface {
	EnqueueOutbox(ctx context.Context, message OutboxMessage, lastError string) error
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxDelivered(ctx context.Context, id uuid.UUID) error
	MarkOutboxFailed(ctx context.Context, id uuid.UUID, retryAfterSeconds int, reason string) error
}

// Repository is the full set of storage operations used by the service.
type Repository interface {
	TransferRepository
	AgentRepository
	StatusRepository
	ContractRepository
	OutboxRepository
}
