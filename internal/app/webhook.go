/**
 * @description
 * Applies authenticated transfer status events to the transfer store.
 *
 * @notes
 * - The event id is reserved before apply. A failed apply releases the
 *   reservation so the sender's retry is processed rather than ignored.
 * - With no transfer store configured the apply step is a no-op; events are
 *   still de-duplicated and acknowledged.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ats/transfer-service/internal/dedup"
	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
	"github.com/ats/transfer-service/pkg/rabbitmq"
)

const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate_ignored"
)

// WebhookResult is the acknowledgement body.
type WebhookResult struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
}

// WebhookProcessor de-duplicates and applies status events.
type WebhookProcessor struct {
	seen        dedup.Store
	transfers   store.TransferRepository
	transitions domain.TransitionPolicy
	producer    rabbitmq.Publisher
	now         func() time.Time
}

// NewWebhookProcessor creates a processor. transfers may be nil to disable apply.
func NewWebhookProcessor(seen dedup.Store, transfers store.TransferRepository, transitions domain.TransitionPolicy, producer rabbitmq.Publisher) *WebhookProcessor {
	if transitions == nil {
		transitions = domain.AllowAllTransitions{}
	}
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &WebhookProcessor{
		seen:        seen,
		transfers:   transfers,
		transitions: transitions,
		producer:    producer,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process handles a validated event exactly once per event id.
func (p *WebhookProcessor) Process(ctx context.Context, event *domain.TransferStatusEvent) (WebhookResult, error) {
	reserved, err := p.seen.Reserve(ctx, event.EventID)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("dedup reserve failed: %w", err)
	}
	if !reserved {
		log.Printf("level=info component=webhook msg=\"duplicate event ignored\" event_id=%s", event.EventID)
		return WebhookResult{Status: WebhookStatusDuplicate, EventID: event.EventID}, nil
	}

	if err := p.apply(ctx, event); err != nil {
		if releaseErr := p.seen.Release(context.WithoutCancel(ctx), event.EventID); releaseErr != nil {
			log.Printf("level=error component=webhook msg=\"dedup release failed\" event_id=%s err=%v", event.EventID, releaseErr)
		}
		return WebhookResult{}, err
	}

	if err := p.seen.Commit(context.WithoutCancel(ctx), event.EventID); err != nil {
		// The apply is an idempotent upsert; a retry after a lost commit re-applies the same row.
		log.Printf("level=warn component=webhook msg=\"dedup commit failed\" event_id=%s err=%v", event.EventID, err)
	}
	return WebhookResult{Status: WebhookStatusProcessed, EventID: event.EventID}, nil
}

func (p *WebhookProcessor) apply(ctx context.Context, event *domain.TransferStatusEvent) error {
	if p.transfers == nil {
		log.Printf("level=info component=webhook msg=\"apply disabled; event acknowledged\" event_id=%s transfer_id=%s", event.EventID, event.Data.TransferID)
		return nil
	}

	data := event.Data
	next := domain.TransferState(data.State)

	var current domain.TransferState
	existing, err := p.transfers.FindTransferByID(ctx, data.TransferID)
	switch {
	case err == nil:
		current = existing.State
	case errors.Is(err, store.ErrTransferNotFound):
	default:
		return fmt.Errorf("failed to load transfer %s: %w", data.TransferID, err)
	}
	if err := p.transitions.Allow(current, next); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalTransition, err)
	}

	update := domain.TransferStatusUpdate{
		TransferID:    data.TransferID,
		EventID:       event.EventID,
		EventType:     event.EventType,
		OccurredAt:    event.OccurredAt,
		Source:        event.Source,
		PreviousState: data.PreviousState,
		State:         next,
		ReasonCodes:   data.ReasonCodes,
		NPN:           data.NPN,
		StatusMessage: data.StatusMessage,
		EffectiveDate: data.EffectiveDate,
		UpdatedAt:     p.now(),
	}
	if update.ReasonCodes == nil {
		update.ReasonCodes = []string{}
	}
	if err := p.transfers.ApplyTransferStatus(ctx, update); err != nil {
		return fmt.Errorf("failed to apply status event: %w", err)
	}
	log.Printf("level=info component=webhook msg=\"status applied\" event_id=%s transfer_id=%s from=%s to=%s", event.EventID, data.TransferID, current, next)

	stateChanged := domain.TransferStateChangedEvent{
		TransferID:    data.TransferID,
		EventID:       event.EventID,
		PreviousState: data.PreviousState,
		State:         data.State,
		ReasonCodes:   update.ReasonCodes,
		OccurredAt:    event.OccurredAt,
	}
	if err := p.producer.PublishTransferStateChanged(ctx, stateChanged); err != nil {
		log.Printf("level=warn component=webhook msg=\"state change publish failed\" transfer_id=%s err=%v", data.TransferID, err)
	}
	return nil
}
