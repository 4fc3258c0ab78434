package inapp

import (
	"context"
	"time"

	"crm_renewal_backend/internal/notification/snooze"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/logger"

	"github.com/google/uuid"
)

// feedScanLimit bounds how many raw rows are considered when building a
// feed page. Visibility is decided in process (snooze state is live, rows
// are append-only), so pagination works on the filtered slice.
const feedScanLimit = 500

// SnoozeReader provides the active snooze set for visibility filtering.
type SnoozeReader interface {
	ListActive(ctx context.Context) ([]snooze.Snooze, error)
}

// Service serves the user-facing notification feed with snooze-aware
// visibility. The same matcher that guards the feed guards the counts, so
// the badge number always agrees with the visible list.
type Service struct {
	repo    *Repository
	snoozes SnoozeReader
	clock   func() time.Time
	log     *logger.Logger
}

func NewService(repo *Repository, snoozes SnoozeReader, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		snoozes: snoozes,
		clock:   time.Now,
		log:     log,
	}
}

// SetClock overrides the evaluation clock. Used by tests.
func (s *Service) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Service) activeSnoozes(ctx context.Context) []snooze.Snooze {
	if s.snoozes == nil {
		return nil
	}
	active, err := s.snoozes.ListActive(ctx)
	if err != nil {
		// A missing snooze set degrades to showing everything rather than
		// failing the read path.
		if s.log != nil {
			s.log.Warn("snooze lookup failed, serving unfiltered", "error", err)
		}
		return nil
	}
	return active
}

func accountKey(relatedAccountID *string) string {
	if relatedAccountID == nil {
		return ""
	}
	return *relatedAccountID
}

// Feed returns one page of visible notifications for a user. The returned
// total counts visible rows inside the scan window only: a history deeper
// than feedScanLimit raw rows reports the window's count, not the full
// archive. The feed surfaces recent activity; the archive is not paged past
// the window.
func (s *Service) Feed(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, apperr.Internal("notification service not configured")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	rows, err := s.repo.ListRecent(ctx, userID, feedScanLimit)
	if err != nil {
		return nil, 0, err
	}

	now := s.clock()
	active := s.activeSnoozes(ctx)

	visible := make([]Notification, 0, len(rows))
	for _, n := range rows {
		if snooze.AnyActive(active, n.Type, accountKey(n.RelatedAccountID), now) {
			continue
		}
		visible = append(visible, n)
	}

	start := (page - 1) * pageSize
	if start >= len(visible) {
		return []Notification{}, len(visible), nil
	}
	end := start + pageSize
	if end > len(visible) {
		end = len(visible)
	}

	return visible[start:end], len(visible), nil
}

// UnreadCounts returns unread totals per notification type, with snoozed
// (type, account) pairs excluded.
func (s *Service) UnreadCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	if s == nil || s.repo == nil {
		return nil, apperr.Internal("notification service not configured")
	}

	groups, err := s.repo.UnreadGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	active := s.activeSnoozes(ctx)

	counts := make(map[string]int)
	for _, g := range groups {
		if snooze.AnyActive(active, g.Type, accountKey(g.RelatedAccountID), now) {
			continue
		}
		counts[g.Type] += g.Count
	}

	return counts, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
