package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ats/transfer-service/internal/domain"
)

// PutAgent records the agent named on a submission. Names are overwritten with
// whatever the latest submission carried.
func (r *PostgresRepository) PutAgent(ctx context.Context, agent domain.Agent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO agents (npn, first_name, last_name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (npn) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()
	`, agent.NPN, agent.FirstName, agent.LastName)
	if err != nil {
		return fmt.Errorf("put agent %s: %w", agent.NPN, err)
	}
	return nil
}

func (r *PostgresRepository) FindAgentByNPN(ctx context.Context, npn string) (*domain.Agent, error) {
	var agent domain.Agent
	err := r.db.QueryRow(ctx, `SELECT npn, first_name, last_name FROM agents WHERE npn = $1`, npn).
		Scan(&agent.NPN, &agent.FirstName, &agent.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return &agent, nil
}
