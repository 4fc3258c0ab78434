// Package inapp persists and serves the per-user notification feed.
package inapp

import (
	"context"
	"fmt"
	"time"

	"crm_renewal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opUpsertDaily  = "notification.inapp.repository.upsert_daily"
	opListRecent   = "notification.inapp.repository.list_recent"
	opUnreadGroups = "notification.inapp.repository.unread_groups"
	opMarkRead     = "notification.inapp.repository.mark_read"
	opMarkAllRead  = "notification.inapp.repository.mark_all_read"
	opListUsers    = "notification.inapp.repository.list_active_users"

	errRepoNotConfigured = "in-app notification repository not configured"
	errUserIDRequired    = "userId is required"
)

// Notification is one feed row. Rows are append-only: snoozed rows are
// filtered at read time, never deleted, and rows for accounts that left the
// at-risk/neglected condition stay for history.
type Notification struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	Type             string    `json:"type"`
	RelatedAccountID *string   `json:"relatedAccountId,omitempty"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	IsRead           bool      `json:"isRead"`
	NotifiedOn       string    `json:"notifiedOn"` // YYYY-MM-DD dedup day
	CreatedAt        time.Time `json:"createdAt"`
}

// UpsertDailyParams identifies one logical notification for one calendar day.
type UpsertDailyParams struct {
	UserID           uuid.UUID
	Type             string
	RelatedAccountID *string
	NotifiedOn       string // YYYY-MM-DD
	Title            string
	Content          string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertDaily inserts at most one notification per
// (user, type, account, day). Re-running reconciliation within the same day
// is a no-op; returns whether a row was actually created.
func (r *Repository) UpsertDaily(ctx context.Context, p UpsertDailyParams) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errRepoNotConfigured).WithOp(opUpsertDaily)
	}
	if p.UserID == uuid.Nil || p.Type == "" || p.NotifiedOn == "" {
		return false, apperr.Validation("userId, type and notifiedOn are required").WithOp(opUpsertDaily)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, type, related_account_id, notified_on, title, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, type, COALESCE(related_account_id, ''), notified_on) DO NOTHING
	`, p.UserID, p.Type, p.RelatedAccountID, p.NotifiedOn, p.Title, p.Content)
	if err != nil {
		return false, apperr.Unavailable("upsert notification failed", err).WithOp(opUpsertDaily)
	}

	return tag.RowsAffected() > 0, nil
}

// ListRecent returns the newest rows for a user, unfiltered. Snooze
// visibility is applied by the service so the same matcher governs the feed
// and the counts.
func (r *Repository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListRecent)
	}
	if userID == uuid.Nil {
		return nil, apperr.Validation(errUserIDRequired).WithOp(opListRecent)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, related_account_id, to_char(notified_on, 'YYYY-MM-DD'), title, content, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, apperr.Unavailable("list notifications failed", err).WithOp(opListRecent)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if scanErr := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.RelatedAccountID, &n.NotifiedOn, &n.Title, &n.Content, &n.IsRead, &n.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan notification failed: %v", scanErr)).WithOp(opListRecent)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opListRecent)
	}

	return items, nil
}

// UnreadGroup is the unread count for one (type, account) pair. The service
// drops snoozed groups before summing per-type totals.
type UnreadGroup struct {
	Type             string
	RelatedAccountID *string
	Count            int
}

// UnreadGroups returns unread counts grouped by (type, related account).
func (r *Repository) UnreadGroups(ctx context.Context, userID uuid.UUID) ([]UnreadGroup, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opUnreadGroups)
	}
	if userID == uuid.Nil {
		return nil, apperr.Validation(errUserIDRequired).WithOp(opUnreadGroups)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT type, related_account_id, COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
		GROUP BY type, related_account_id
	`, userID)
	if err != nil {
		return nil, apperr.Unavailable("count unread notifications failed", err).WithOp(opUnreadGroups)
	}
	defer rows.Close()

	var groups []UnreadGroup
	for rows.Next() {
		var g UnreadGroup
		if scanErr := rows.Scan(&g.Type, &g.RelatedAccountID, &g.Count); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan unread group failed: %v", scanErr)).WithOp(opUnreadGroups)
		}
		groups = append(groups, g)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate unread groups failed: %v", rowsErr)).WithOp(opUnreadGroups)
	}

	return groups, nil
}

// MarkRead marks one notification read for the owning user.
func (r *Repository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("userId and notificationId are required").WithOp(opMarkRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return apperr.Unavailable("mark notification read failed", err).WithOp(opMarkRead)
	}

	return nil
}

// MarkAllRead marks all of a user's unread notifications read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	if userID == uuid.Nil {
		return apperr.Validation(errUserIDRequired).WithOp(opMarkAllRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return apperr.Unavailable("mark all notifications read failed", err).WithOp(opMarkAllRead)
	}

	return nil
}

// ActiveUser is a notification recipient.
type ActiveUser struct {
	ID    uuid.UUID
	Email string
}

// ListActiveUsers returns all users who receive reconciliation notifications.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]ActiveUser, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListUsers)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, email FROM users WHERE is_active = TRUE
	`)
	if err != nil {
		return nil, apperr.Unavailable("list active users failed", err).WithOp(opListUsers)
	}
	defer rows.Close()

	var users []ActiveUser
	for rows.Next() {
		var u ActiveUser
		if scanErr := rows.Scan(&u.ID, &u.Email); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan user failed: %v", scanErr)).WithOp(opListUsers)
		}
		users = append(users, u)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate users failed: %v", rowsErr)).WithOp(opListUsers)
	}

	return users, nil
}
