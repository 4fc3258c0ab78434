// Package repository persists the renewal engine's source reads, the
// at-risk cache and the single account mutation the engine performs.
package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListAccounts  = "renewal.repository.list_accounts"
	opGetAccount    = "renewal.repository.get_account"
	opListEstimates = "renewal.repository.list_estimates"
	opUpdateStatus  = "renewal.repository.update_account_status"
	opAccountNames  = "renewal.repository.account_names"

	errRepoNotConfigured = "renewal repository not configured"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAccounts returns every non-deleted account. Archived accounts are
// included; classification needs them to clear stale at_risk statuses.
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListAccounts)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, status, archived, COALESCE(revenue_segment, ''), icp_status,
		       to_char(last_interaction_date, 'YYYY-MM-DD')
		FROM accounts
	`)
	if err != nil {
		return nil, apperr.Unavailable("list accounts failed", err).WithOp(opListAccounts)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var status string
		if scanErr := rows.Scan(&a.ID, &a.Name, &status, &a.Archived, &a.RevenueSegment, &a.ICPStatus, &a.LastInteractionDate); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan account failed: %v", scanErr)).WithOp(opListAccounts)
		}
		a.Status = domain.AccountStatus(status)
		accounts = append(accounts, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate accounts failed: %v", rowsErr)).WithOp(opListAccounts)
	}

	return accounts, nil
}

// GetAccount returns one account by id.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	if r == nil || r.pool == nil {
		return domain.Account{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetAccount)
	}
	if id == uuid.Nil {
		return domain.Account{}, apperr.Validation("account id is required").WithOp(opGetAccount)
	}

	var a domain.Account
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, status, archived, COALESCE(revenue_segment, ''), icp_status,
		       to_char(last_interaction_date, 'YYYY-MM-DD')
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &status, &a.Archived, &a.RevenueSegment, &a.ICPStatus, &a.LastInteractionDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, apperr.NotFound("account not found").WithOp(opGetAccount)
		}
		return domain.Account{}, apperr.Unavailable("get account failed", err).WithOp(opGetAccount)
	}
	a.Status = domain.AccountStatus(status)

	return a, nil
}

// ListEstimates returns every estimate row. contract_end comes back as the
// raw stored text; normalization is the domain layer's job.
func (r *Repository) ListEstimates(ctx context.Context) ([]domain.Estimate, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListEstimates)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, number, status, contract_end
		FROM estimates
	`)
	if err != nil {
		return nil, apperr.Unavailable("list estimates failed", err).WithOp(opListEstimates)
	}
	defer rows.Close()

	var estimates []domain.Estimate
	for rows.Next() {
		var e domain.Estimate
		if scanErr := rows.Scan(&e.ID, &e.AccountID, &e.Number, &e.Status, &e.ContractEnd); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan estimate failed: %v", scanErr)).WithOp(opListEstimates)
		}
		estimates = append(estimates, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate estimates failed: %v", rowsErr)).WithOp(opListEstimates)
	}

	return estimates, nil
}

// UpdateAccountStatus moves an account to a new status only when its current
// status is one of from. The guard keeps the engine from stomping on a
// status a user changed mid-pass. Returns whether a row changed.
func (r *Repository) UpdateAccountStatus(ctx context.Context, id uuid.UUID, from []domain.AccountStatus, to domain.AccountStatus) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errRepoNotConfigured).WithOp(opUpdateStatus)
	}
	if id == uuid.Nil || len(from) == 0 || to == "" {
		return false, apperr.Validation("id, from and to are required").WithOp(opUpdateStatus)
	}

	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)
	`, id, fromValues, string(to))
	if err != nil {
		return false, apperr.Unavailable("update account status failed", err).WithOp(opUpdateStatus)
	}

	return tag.RowsAffected() > 0, nil
}

// AccountNames resolves display names for a set of account ids. Unknown ids
// are simply absent from the result.
func (r *Repository) AccountNames(ctx context.Context, ids []string) (map[string]string, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opAccountNames)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name FROM accounts WHERE id::text = ANY($1)
	`, ids)
	if err != nil {
		return nil, apperr.Unavailable("resolve account names failed", err).WithOp(opAccountNames)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if scanErr := rows.Scan(&id, &name); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan account name failed: %v", scanErr)).WithOp(opAccountNames)
		}
		names[id] = name
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate account names failed: %v", rowsErr)).WithOp(opAccountNames)
	}

	return names, nil
}
