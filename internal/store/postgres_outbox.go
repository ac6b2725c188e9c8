package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxOutboxErrorLength = 2000

// EnqueueOutbox stores a side effect for later delivery.
func (r *PostgresRepository) EnqueueOutbox(ctx context.Context, message OutboxMessage, lastError string) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO side_effect_outbox (id, kind, payload, last_error)
		VALUES ($1, $2, $3::jsonb, $4)
	`, message.ID, strings.TrimSpace(message.Kind), string(message.Payload), truncateReason(lastError))
	if err != nil {
		return fmt.Errorf("failed to enqueue side effect: %w", err)
	}
	return nil
}

// ClaimOutboxMessages leases due messages, plus messages whose previous lease
// went stale, and bumps their attempt counter.
func (r *PostgresRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT id
			FROM side_effect_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE side_effect_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.kind, o.payload::text, o.attempts, o.created_at
	`

	rows, err := r.db.Query(ctx, query, limit, staleAfterSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			msg         OutboxMessage
			payloadText string
		)
		if err := rows.Scan(&msg.ID, &msg.Kind, &payloadText, &msg.Attempts, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Payload = []byte(payloadText)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *PostgresRepository) MarkOutboxDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE side_effect_outbox
		SET status = 'delivered',
			delivered_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresRepository) MarkOutboxFailed(ctx context.Context, id uuid.UUID, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	_, err := r.db.Exec(ctx, `
		UPDATE side_effect_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE id = $1
	`, id, retryAfterSeconds, truncateReason(reason))
	return err
}

func truncateReason(reason string) string {
	if len(reason) > maxOutboxErrorLength {
		return reason[:maxOutboxErrorLength]
	}
	return reason
}
