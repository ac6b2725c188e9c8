/**
 * @description
 * PostgreSQL implementation of the transfer and carrier-status repositories.
 * Transfers are keyed by their composite "<receiving>|<releasing>|<npn>" id and
 * carrier statuses by (receiving_fein, status_key).
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - internal/domain: domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ats/transfer-service/internal/domain"
)

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const maxTransferListLimit = 100

const transferColumns = `
	id, state, agent_npn, agent_first_name, agent_last_name,
	releasing_fein, releasing_name, receiving_fein, receiving_name,
	effective_date, agent_attestation, e_signature_ref, notes, idempotency_key,
	last_event_id, last_event_type, occurred_at, source, previous_state,
	reason_codes::text, status_npn, status_message, status_effective_date,
	created_at, updated_at`

// PutTransfer writes a complete transfer record. An existing row with the same
// id is replaced, which clears any status projection it carried.
func (r *PostgresRepository) PutTransfer(ctx context.Context, record *domain.TransferRecord) error {
	query := `
		INSERT INTO transfers (
			id, state, agent_npn, agent_first_name, agent_last_name,
			releasing_fein, releasing_name, receiving_fein, receiving_name,
			effective_date, agent_attestation, e_signature_ref, notes, idempotency_key,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			agent_npn = EXCLUDED.agent_npn,
			agent_first_name = EXCLUDED.agent_first_name,
			agent_last_name = EXCLUDED.agent_last_name,
			releasing_fein = EXCLUDED.releasing_fein,
			releasing_name = EXCLUDED.releasing_name,
			receiving_fein = EXCLUDED.receiving_fein,
			receiving_name = EXCLUDED.receiving_name,
			effective_date = EXCLUDED.effective_date,
			agent_attestation = EXCLUDED.agent_attestation,
			e_signature_ref = EXCLUDED.e_signature_ref,
			notes = EXCLUDED.notes,
			idempotency_key = EXCLUDED.idempotency_key,
			last_event_id = NULL,
			last_event_type = NULL,
			occurred_at = NULL,
			source = NULL,
			previous_state = NULL,
			reason_codes = NULL,
			status_npn = NULL,
			status_message = NULL,
			status_effective_date = NULL,
			created_at = EXCLUDED.created_at,
			updated_at = NULL
	`
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query,
		record.ID,
		string(record.State),
		record.Agent.NPN,
		record.Agent.FirstName,
		record.Agent.LastName,
		record.ReleasingImo.FEIN,
		record.ReleasingImo.Name,
		record.ReceivingImo.FEIN,
		record.ReceivingImo.Name,
		record.EffectiveDate,
		record.Consent.AgentAttestation,
		record.Consent.ESignatureRef,
		record.Notes,
		record.IdempotencyKey,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("put transfer %s: %w", record.ID, err)
	}
	return nil
}

// FindTransferByID loads one transfer record.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	record, err := scanTransfer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListTransfers returns transfers matching filter, newest first.
func (r *PostgresRepository) ListTransfers(ctx context.Context, filter TransferFilter) ([]domain.TransferRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxTransferListLimit {
		limit = maxTransferListLimit
	}
	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE ($1 = '' OR agent_npn = $1)
			AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`
	rows, err := r.db.Query(ctx, query, filter.NPN, string(filter.State), limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TransferRecord, 0, limit)
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// ApplyTransferStatus upserts the status projection of a webhook event. Only the
// projection columns and state are written; submission fields are preserved.
func (r *PostgresRepository) ApplyTransferStatus(ctx context.Context, update domain.TransferStatusUpdate) error {
	reasonCodes := update.ReasonCodes
	if reasonCodes == nil {
		reasonCodes = []string{}
	}
	reasonBlob, err := json.Marshal(reasonCodes)
	if err != nil {
		return err
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transfers (
			id, state, last_event_id, last_event_type, occurred_at, source,
			previous_state, reason_codes, status_npn, status_message,
			status_effective_date, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			last_event_id = EXCLUDED.last_event_id,
			last_event_type = EXCLUDED.last_event_type,
			occurred_at = EXCLUDED.occurred_at,
			source = EXCLUDED.source,
			previous_state = EXCLUDED.previous_state,
			reason_codes = EXCLUDED.reason_codes,
			status_npn = EXCLUDED.status_npn,
			status_message = EXCLUDED.status_message,
			status_effective_date = EXCLUDED.status_effective_date,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Exec(ctx, query,
		update.TransferID,
		string(update.State),
		update.EventID,
		update.EventType,
		update.OccurredAt,
		update.Source,
		update.PreviousState,
		string(reasonBlob),
		update.NPN,
		update.StatusMessage,
		update.EffectiveDate,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("apply status to transfer %s: %w", update.TransferID, err)
	}
	return nil
}

// PutCarrierStatus overwrites the ledger row for one carrier/agent/releaser.
func (r *PostgresRepository) PutCarrierStatus(ctx context.Context, record domain.CarrierStatusRecord) error {
	var requirements *string
	if record.Requirements != nil {
		blob, err := json.Marshal(record.Requirements)
		if err != nil {
			return err
		}
		text := string(blob)
		requirements = &text
	}

	query := `
		INSERT INTO carrier_statuses (
			receiving_fein, status_key, releasing_fein, carrier_id, status, npn, requirements, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, NOW())
		ON CONFLICT (receiving_fein, status_key) DO UPDATE SET
			releasing_fein = EXCLUDED.releasing_fein,
			carrier_id = EXCLUDED.carrier_id,
			status = EXCLUDED.status,
			npn = EXCLUDED.npn,
			requirements = EXCLUDED.requirements,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		record.ReceivingFEIN,
		record.StatusKey,
		record.ReleasingFEIN,
		record.CarrierID,
		string(record.Status),
		record.NPN,
		requirements,
	)
	if err != nil {
		return fmt.Errorf("put carrier status %s/%s: %w", record.ReceivingFEIN, record.StatusKey, err)
	}
	return nil
}

// MarkCarrierStatusReleased sets status=RELEASED without touching requirements.
func (r *PostgresRepository) MarkCarrierStatusReleased(ctx context.Context, receivingFein, releasingFein, carrierID, npn string) error {
	statusKey := domain.StatusKey(carrierID, npn, releasingFein)
	query := `
		INSERT INTO carrier_statuses (
			receiving_fein, status_key, releasing_fein, carrier_id, status, npn, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (receiving_fein, status_key) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		receivingFein, statusKey, releasingFein, carrierID, string(domain.CarrierStatusReleased), npn)
	if err != nil {
		return fmt.Errorf("release carrier status %s/%s: %w", receivingFein, statusKey, err)
	}
	return nil
}

// ListCarrierStatuses returns every ledger row of one receiving IMO.
func (r *PostgresRepository) ListCarrierStatuses(ctx context.Context, receivingFein string) ([]domain.CarrierStatusRecord, error) {
	query := `
		SELECT receiving_fein, status_key, releasing_fein, carrier_id, status, npn, requirements::text
		FROM carrier_statuses
		WHERE receiving_fein = $1
		ORDER BY status_key
	`
	rows, err := r.db.Query(ctx, query, receivingFein)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.CarrierStatusRecord, 0)
	for rows.Next() {
		var (
			record       domain.CarrierStatusRecord
			status       string
			requirements *string
		)
		if err := rows.Scan(
			&record.ReceivingFEIN,
			&record.StatusKey,
			&record.ReleasingFEIN,
			&record.CarrierID,
			&status,
			&record.NPN,
			&requirements,
		); err != nil {
			return nil, err
		}
		record.Status = domain.CarrierStatus(status)
		if requirements != nil {
			if err := json.Unmarshal([]byte(*requirements), &record.Requirements); err != nil {
				return nil, fmt.Errorf("decode requirements for %s: %w", record.StatusKey, err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var (
		record      domain.TransferRecord
		state       string
		reasonCodes *string
	)
	err := row.Scan(
		&record.ID,
		&state,
		&record.Agent.NPN,
		&record.Agent.FirstName,
		&record.Agent.LastName,
		&record.ReleasingImo.FEIN,
		&record.ReleasingImo.Name,
		&record.ReceivingImo.FEIN,
		&record.ReceivingImo.Name,
		&record.EffectiveDate,
		&record.Consent.AgentAttestation,
		&record.Consent.ESignatureRef,
		&record.Notes,
		&record.IdempotencyKey,
		&record.LastEventID,
		&record.LastEventType,
		&record.OccurredAt,
		&record.Source,
		&record.PreviousState,
		&reasonCodes,
		&record.StatusNPN,
		&record.StatusMessage,
		&record.StatusEffectiveDate,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.State = domain.TransferState(state)
	if reasonCodes != nil {
		if err := json.Unmarshal([]byte(*reasonCodes), &record.ReasonCodes); err != nil {
			return nil, fmt.Errorf("decode reason codes for %s: %w", record.ID, err)
		}
	}
	return &record, nil
}
