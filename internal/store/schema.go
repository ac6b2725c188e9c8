package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		agent_npn TEXT NOT NULL DEFAULT '',
		agent_first_name TEXT NOT NULL DEFAULT '',
		agent_last_name TEXT NOT NULL DEFAULT '',
		releasing_fein TEXT NOT NULL DEFAULT '',
		releasing_name TEXT NOT NULL DEFAULT '',
		receiving_fein TEXT NOT NULL DEFAULT '',
		receiving_name TEXT NOT NULL DEFAULT '',
		effective_date TEXT NOT NULL DEFAULT '',
		agent_attestation BOOLEAN NOT NULL DEFAULT FALSE,
		e_signature_ref TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT NOT NULL DEFAULT '',
		last_event_id TEXT,
		last_event_type TEXT,
		occurred_at TEXT,
		source TEXT,
		previous_state TEXT,
		reason_codes JSONB,
		status_npn TEXT,
		status_message TEXT,
		status_effective_date TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS transfers_agent_npn_idx ON transfers (agent_npn)`,
	`CREATE TABLE IF NOT EXISTS agents (
		npn TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS carrier_statuses (
		receiving_fein TEXT NOT NULL,
		status_key TEXT NOT NULL,
		releasing_fein TEXT NOT NULL,
		carrier_id TEXT NOT NULL,
		status TEXT NOT NULL,
		npn TEXT NOT NULL,
		requirements JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (receiving_fein, status_key)
	)`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		fein TEXT NOT NULL,
		contract_number TEXT NOT NULL DEFAULT '',
		npn TEXT NOT NULL,
		carrier_id TEXT NOT NULL,
		contract_type TEXT NOT NULL DEFAULT '',
		contract_value TEXT NOT NULL DEFAULT '',
		issue_date TEXT NOT NULL DEFAULT '',
		agent_first_name TEXT NOT NULL DEFAULT '',
		agent_last_name TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS contracts_fein_idx ON contracts (fein)`,
	`CREATE INDEX IF NOT EXISTS contracts_carrier_npn_idx ON contracts (carrier_id, npn)`,
	`CREATE TABLE IF NOT EXISTS side_effect_outbox (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processing_started_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS side_effect_outbox_due_idx ON side_effect_outbox (status, next_attempt_at)`,
}

// EnsureSchema creates the tables the service needs if they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, statement := range schemaStatements {
		if _, err := db.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
