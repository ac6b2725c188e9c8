/**
 * @description
 * Secondary writes (ledger INITIATED/RELEASED rows, reassignment triggers) never
 * fail the request that caused them. When one fails, the configured
 * SideEffectPolicy decides what happens: log it, or queue it in the outbox for
 * the dispatcher to redeliver.
 */
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
)

// Side effect kinds, also stored as the outbox kind column.
const (
	SideEffectStatusInitiated = "status.initiated"
	SideEffectStatusReleased  = "status.released"
	SideEffectReassign        = "contracts.reassign"
)

const (
	SideEffectPolicyLog    = "log"
	SideEffectPolicyOutbox = "outbox"

	outboxEnqueueTimeout = 5 * time.Second
)

// SideEffectPolicy handles a side effect whose first attempt failed.
type SideEffectPolicy interface {
	Name() string
	Failed(ctx context.Context, kind string, payload []byte, cause error)
}

// LogSideEffects logs the failure and drops the side effect.
type LogSideEffects struct{}

func (LogSideEffects) Name() string { return SideEffectPolicyLog }

func (LogSideEffects) Failed(ctx context.Context, kind string, payload []byte, cause error) {
	log.Printf("level=warn component=side_effects policy=log msg=\"side effect failed; dropped\" kind=%s payload=%s err=%v", kind, payload, cause)
}

// OutboxSideEffects persists the failure for redelivery.
type OutboxSideEffects struct {
	repo store.OutboxRepository
}

func NewOutboxSideEffects(repo store.OutboxRepository) *OutboxSideEffects {
	return &OutboxSideEffects{repo: repo}
}

func (p *OutboxSideEffects) Name() string { return SideEffectPolicyOutbox }

func (p *OutboxSideEffects) Failed(ctx context.Context, kind string, payload []byte, cause error) {
	// The request context may already be done when the side effect failed.
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outboxEnqueueTimeout)
	defer cancel()

	message := store.OutboxMessage{Kind: kind, Payload: payload}
	if err := p.repo.EnqueueOutbox(enqueueCtx, message, cause.Error()); err != nil {
		log.Printf("level=error component=side_effects policy=outbox msg=\"enqueue failed; side effect dropped\" kind=%s cause=%v err=%v", kind, cause, err)
		return
	}
	log.Printf("level=warn component=side_effects policy=outbox msg=\"side effect queued for retry\" kind=%s err=%v", kind, cause)
}

// SideEffectPolicyByName resolves a configured policy. "outbox" needs repo;
// anything else logs.
func SideEffectPolicyByName(name string, repo store.OutboxRepository) SideEffectPolicy {
	if strings.EqualFold(strings.TrimSpace(name), SideEffectPolicyOutbox) && repo != nil {
		return NewOutboxSideEffects(repo)
	}
	return LogSideEffects{}
}

// ReleasedStatus identifies a ledger row to flip to RELEASED.
type ReleasedStatus struct {
	ReceivingFEIN string `json:"receivingFein"`
	ReleasingFEIN string `json:"releasingFein"`
	CarrierID     string `json:"carrierId"`
	NPN           string `json:"npn"`
}

// Reassigner triggers contract reassignment, usually over HTTP.
type Reassigner interface {
	Reassign(ctx context.Context, request domain.ReassignContractsRequest) (int, error)
}

// SideEffects executes side effects and routes failures to the policy.
type SideEffects struct {
	statuses   store.StatusRepository
	reassigner Reassigner
	policy     SideEffectPolicy
}

func NewSideEffects(statuses store.StatusRepository, reassigner Reassigner, policy SideEffectPolicy) *SideEffects {
	if policy == nil {
		policy = LogSideEffects{}
	}
	return &SideEffects{statuses: statuses, reassigner: reassigner, policy: policy}
}

// CanReassign reports whether a reassignment trigger is configured.
func (s *SideEffects) CanReassign() bool {
	return s.reassigner != nil
}

// Policy returns the configured failure policy.
func (s *SideEffects) Policy() SideEffectPolicy {
	return s.policy
}

// Run executes one side effect now and hands a failure to the policy. It
// reports whether the first attempt succeeded.
func (s *SideEffects) Run(ctx context.Context, kind string, value any) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("level=error component=side_effects msg=\"payload marshal failed\" kind=%s err=%v", kind, err)
		return false
	}
	if err := s.Execute(ctx, kind, payload); err != nil {
		s.policy.Failed(ctx, kind, payload, err)
		return false
	}
	return true
}

// Execute performs a side effect from its stored payload. The outbox
// dispatcher calls it for redelivery.
func (s *SideEffects) Execute(ctx context.Context, kind string, payload []byte) error {
	switch kind {
	case SideEffectStatusInitiated:
		var record domain.CarrierStatusRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("decode %s payload: %w", kind, err)
		}
		if s.statuses == nil {
			return fmt.Errorf("status ledger is not configured")
		}
		return s.statuses.PutCarrierStatus(ctx, record)
	case SideEffectStatusReleased:
		var released ReleasedStatus
		if err := json.Unmarshal(payload, &released); err != nil {
			return fmt.Errorf("decode %s payload: %w", kind, err)
		}
		if s.statuses == nil {
			return fmt.Errorf("status ledger is not configured")
		}
		return s.statuses.MarkCarrierStatusReleased(ctx, released.ReceivingFEIN, released.ReleasingFEIN, released.CarrierID, released.NPN)
	case SideEffectReassign:
		var request domain.ReassignContractsRequest
		if err := json.Unmarshal(payload, &request); err != nil {
			return fmt.Errorf("decode %s payload: %w", kind, err)
		}
		if s.reassigner == nil {
			return fmt.Errorf("contract reassignment is not configured")
		}
		updated, err := s.reassigner.Reassign(ctx, request)
		if err != nil {
			return err
		}
		log.Printf("level=info component=side_effects msg=\"contracts reassigned\" carrier=%s npn=%s updated=%d", request.CarrierID, request.NPN, updated)
		return nil
	default:
		return fmt.Errorf("unknown side effect kind %q", kind)
	}
}
