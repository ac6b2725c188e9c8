package app

import (
	"context"
	"log"
	"time"

	"github.com/ats/transfer-service/internal/store"
)

const (
	defaultBatchSize       = 50
	defaultStaleProcessing = 2 * time.Minute
)

// SideEffectExecutor replays a stored side effect.
type SideEffectExecutor interface {
	Execute(ctx context.Context, kind string, payload []byte) error
}

// OutboxDispatcher redelivers side effects queued by the outbox policy.
type OutboxDispatcher struct {
	repo                store.OutboxRepository
	executor            SideEffectExecutor
	batchSize           int
	staleProcessingTime time.Duration
}

func NewOutboxDispatcher(repo store.OutboxRepository, executor SideEffectExecutor) *OutboxDispatcher {
	return &OutboxDispatcher{
		repo:                repo,
		executor:            executor,
		batchSize:           defaultBatchSize,
		staleProcessingTime: defaultStaleProcessing,
	}
}

// Flush claims one batch of due messages and executes them. It returns how many
// were delivered.
func (d *OutboxDispatcher) Flush(ctx context.Context) (int, error) {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, message := range messages {
		if err := d.executor.Execute(ctx, message.Kind, message.Payload); err != nil {
			retryAfter := retryDelaySeconds(message.Attempts)
			log.Printf("level=warn component=outbox_dispatcher msg=\"redelivery failed\" id=%s kind=%s attempts=%d retry_after_s=%d err=%v", message.ID, message.Kind, message.Attempts, retryAfter, err)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				log.Printf("level=error component=outbox_dispatcher msg=\"mark failed failed\" id=%s err=%v", message.ID, markErr)
			}
			continue
		}
		if err := d.repo.MarkOutboxDelivered(ctx, message.ID); err != nil {
			log.Printf("level=error component=outbox_dispatcher msg=\"mark delivered failed\" id=%s err=%v", message.ID, err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 9)
	if delay > 300 {
		return 300
	}
	return delay
}
