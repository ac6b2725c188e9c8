package store

import (
	"context"
	"fmt"

	"github.com/ats/transfer-service/internal/domain"
)

// ScanContracts returns one keyset-paginated page of contracts matching filter.
// The cursor is the continuation token from the previous page.
func (r *PostgresRepository) ScanContracts(ctx context.Context, filter ContractFilter, cursor string, limit int) (ContractPage, error) {
	afterID, err := DecodeCursor(cursor)
	if err != nil {
		return ContractPage{}, err
	}
	limit = normalizePageSize(limit)

	query := `
		SELECT id, fein, contract_number, npn, carrier_id, contract_type,
			contract_value, issue_date, agent_first_name, agent_last_name
		FROM contracts
		WHERE ($1 = '' OR carrier_id = $1)
			AND ($2 = '' OR npn = $2)
			AND ($3 = '' OR fein = $3)
			AND id > $4
		ORDER BY id
		LIMIT $5
	`
	// One extra row tells us whether another page exists.
	rows, err := r.db.Query(ctx, query, filter.CarrierID, filter.NPN, filter.FEIN, afterID, limit+1)
	if err != nil {
		return ContractPage{}, fmt.Errorf("scan contracts: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Contract, 0, limit)
	for rows.Next() {
		var c domain.Contract
		if err := rows.Scan(
			&c.ID,
			&c.FEIN,
			&c.ContractNumber,
			&c.NPN,
			&c.CarrierID,
			&c.ContractType,
			&c.ContractValue,
			&c.IssueDate,
			&c.AgentFirstName,
			&c.AgentLastName,
		); err != nil {
			return ContractPage{}, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return ContractPage{}, err
	}

	page := ContractPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = EncodeCursor(page.Items[limit-1].ID)
	}
	return page, nil
}

// UpdateContractFEIN is a conditional update: it only applies while the row is
// still owned by expectedFein.
func (r *PostgresRepository) UpdateContractFEIN(ctx context.Context, contractID, expectedFein, newFein string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE contracts
		SET fein = $3, updated_at = NOW()
		WHERE id = $1 AND fein = $2
	`, contractID, expectedFein, newFein)
	if err != nil {
		return false, fmt.Errorf("update contract %s: %w", contractID, err)
	}
	return tag.RowsAffected() == 1, nil
}
