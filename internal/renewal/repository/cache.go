package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	opReadCache    = "renewal.repository.read_cache"
	opReplaceCache = "renewal.repository.replace_cache"
	opCacheState   = "renewal.repository.cache_state"
)

// ReadCache returns the current at-risk cache snapshot, most urgent first.
func (r *Repository) ReadCache(ctx context.Context) ([]domain.AtRiskRecord, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opReadCache)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT account_id, to_char(renewal_date, 'YYYY-MM-DD'), days_until_renewal,
		       expiring_estimate_id, expiring_estimate_number, has_duplicates,
		       duplicate_estimates, computed_at
		FROM at_risk_cache
		ORDER BY days_until_renewal ASC
	`)
	if err != nil {
		return nil, apperr.Unavailable("read at-risk cache failed", err).WithOp(opReadCache)
	}
	defer rows.Close()

	var records []domain.AtRiskRecord
	for rows.Next() {
		var rec domain.AtRiskRecord
		var duplicates []byte
		if scanErr := rows.Scan(&rec.AccountID, &rec.RenewalDate, &rec.DaysUntilRenewal,
			&rec.ExpiringEstimateID, &rec.ExpiringEstimateNumber, &rec.HasDuplicates,
			&duplicates, &rec.ComputedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan cache record failed: %v", scanErr)).WithOp(opReadCache)
		}
		if len(duplicates) > 0 {
			if jsonErr := json.Unmarshal(duplicates, &rec.DuplicateEstimates); jsonErr != nil {
				return nil, apperr.Internal(fmt.Sprintf("decode duplicate estimates failed: %v", jsonErr)).WithOp(opReadCache)
			}
		}
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate cache records failed: %v", rowsErr)).WithOp(opReadCache)
	}

	return records, nil
}

// LastComputedAt returns when the cache was last successfully recomputed.
// The second return is false before the first ever recompute.
func (r *Repository) LastComputedAt(ctx context.Context) (time.Time, bool, error) {
	if r == nil || r.pool == nil {
		return time.Time{}, false, apperr.Internal(errRepoNotConfigured).WithOp(opCacheState)
	}

	var computedAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT computed_at FROM at_risk_cache_state WHERE id = 1
	`).Scan(&computedAt)
	if err != nil {
		return time.Time{}, false, apperr.Unavailable("read cache state failed", err).WithOp(opCacheState)
	}
	if computedAt == nil {
		return time.Time{}, false, nil
	}

	return *computedAt, true, nil
}

// ReplaceCache atomically replaces the cache with a new snapshot: upsert by
// account_id, delete rows for accounts no longer at risk, stamp the state
// row. Readers never observe a partially written pass.
func (r *Repository) ReplaceCache(ctx context.Context, records []domain.AtRiskRecord, computedAt time.Time) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opReplaceCache)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Unavailable("begin cache replace failed", err).WithOp(opReplaceCache)
	}
	defer tx.Rollback(ctx)

	keep := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		duplicates, jsonErr := json.Marshal(rec.DuplicateEstimates)
		if jsonErr != nil {
			return apperr.Internal(fmt.Sprintf("encode duplicate estimates failed: %v", jsonErr)).WithOp(opReplaceCache)
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO at_risk_cache
				(account_id, renewal_date, days_until_renewal, expiring_estimate_id,
				 expiring_estimate_number, has_duplicates, duplicate_estimates, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (account_id) DO UPDATE SET
				renewal_date = EXCLUDED.renewal_date,
				days_until_renewal = EXCLUDED.days_until_renewal,
				expiring_estimate_id = EXCLUDED.expiring_estimate_id,
				expiring_estimate_number = EXCLUDED.expiring_estimate_number,
				has_duplicates = EXCLUDED.has_duplicates,
				duplicate_estimates = EXCLUDED.duplicate_estimates,
				computed_at = EXCLUDED.computed_at
		`, rec.AccountID, rec.RenewalDate, rec.DaysUntilRenewal, rec.ExpiringEstimateID,
			rec.ExpiringEstimateNumber, rec.HasDuplicates, duplicates, computedAt); err != nil {
			return apperr.Unavailable("write cache record failed", err).WithOp(opReplaceCache)
		}
		keep = append(keep, rec.AccountID)
	}

	if len(keep) == 0 {
		_, err = tx.Exec(ctx, `DELETE FROM at_risk_cache`)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM at_risk_cache WHERE NOT (account_id = ANY($1))`, keep)
	}
	if err != nil {
		return apperr.Unavailable("prune cache records failed", err).WithOp(opReplaceCache)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO at_risk_cache_state (id, computed_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET computed_at = EXCLUDED.computed_at
	`, computedAt); err != nil {
		return apperr.Unavailable("stamp cache state failed", err).WithOp(opReplaceCache)
	}

	if err = tx.Commit(ctx); err != nil {
		return apperr.Unavailable("commit cache replace failed", err).WithOp(opReplaceCache)
	}

	return nil
}
