package snooze

import (
	"context"
	"fmt"
	"time"

	"crm_renewal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListActive = "notification.snooze.repository.list_active"
	opUpsert     = "notification.snooze.repository.upsert"
)

// UpsertParams contains parameters for creating or refreshing a snooze.
type UpsertParams struct {
	NotificationType string
	RelatedAccountID *string
	SnoozedUntil     time.Time
	SnoozedBy        *uuid.UUID
}

// Repository persists snoozes. Rows are unique per
// (notification_type, related_account_id) pair, with null account ids
// coalesced so the type-wide snooze is also unique.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns all snoozes whose snoozed_until is still in the future.
func (r *Repository) ListActive(ctx context.Context) ([]Snooze, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("snooze repository not configured").WithOp(opListActive)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, notification_type, related_account_id, snoozed_until, snoozed_by, created_at
		FROM notification_snoozes
		WHERE snoozed_until > now()
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.Unavailable("list active snoozes failed", err).WithOp(opListActive)
	}
	defer rows.Close()

	var items []Snooze
	for rows.Next() {
		var s Snooze
		if scanErr := rows.Scan(&s.ID, &s.NotificationType, &s.RelatedAccountID, &s.SnoozedUntil, &s.SnoozedBy, &s.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan snooze failed: %v", scanErr)).WithOp(opListActive)
		}
		items = append(items, s)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate snoozes failed: %v", rowsErr)).WithOp(opListActive)
	}

	return items, nil
}

// Upsert creates the snooze or refreshes its expiry. Never duplicates a
// (type, account) pair.
func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (Snooze, error) {
	if r == nil || r.pool == nil {
		return Snooze{}, apperr.Internal("snooze repository not configured").WithOp(opUpsert)
	}
	if p.NotificationType == "" {
		return Snooze{}, apperr.Validation("notificationType is required").WithOp(opUpsert)
	}
	if !p.SnoozedUntil.After(time.Now()) {
		return Snooze{}, apperr.Validation("snoozedUntil must be in the future").WithOp(opUpsert)
	}

	var s Snooze
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notification_snoozes (notification_type, related_account_id, snoozed_until, snoozed_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (notification_type, COALESCE(related_account_id, ''))
		DO UPDATE SET snoozed_until = EXCLUDED.snoozed_until, snoozed_by = EXCLUDED.snoozed_by
		RETURNING id, notification_type, related_account_id, snoozed_until, snoozed_by, created_at
	`, p.NotificationType, p.RelatedAccountID, p.SnoozedUntil, p.SnoozedBy).Scan(
		&s.ID, &s.NotificationType, &s.RelatedAccountID, &s.SnoozedUntil, &s.SnoozedBy, &s.CreatedAt,
	)
	if err != nil {
		return Snooze{}, apperr.Unavailable("upsert snooze failed", err).WithOp(opUpsert)
	}

	return s, nil
}
