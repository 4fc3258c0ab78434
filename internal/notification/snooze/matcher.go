// Package snooze stores and evaluates notification snoozes: time-bounded
// suppressions of a notification type, optionally scoped to one account.
package snooze

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snooze is one suppression rule. RelatedAccountID is stored as text because
// rows imported from the legacy CRM carry numeric ids; nil means the snooze
// applies to every account of its type.
type Snooze struct {
	ID               uuid.UUID  `json:"id"`
	NotificationType string     `json:"notificationType"`
	RelatedAccountID *string    `json:"relatedAccountId,omitempty"`
	SnoozedUntil     time.Time  `json:"snoozedUntil"`
	SnoozedBy        *uuid.UUID `json:"snoozedBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Matches reports whether this snooze suppresses the queried
// (notification type, account id) pair at the given instant.
//
// Account matching is deliberately strict about nulls: a nil/empty snooze
// account only matches a nil/empty query (the type-wide case); when exactly
// one side is empty there is no match. Non-empty sides compare as trimmed
// strings so numeric and string renderings of the same id still match.
// A whitespace-only RelatedAccountID is an ambiguous row and conservatively
// never matches a concrete account.
func (s Snooze) Matches(notificationType, accountID string, now time.Time) bool {
	if s.NotificationType != notificationType {
		return false
	}
	if !s.SnoozedUntil.After(now) {
		return false
	}

	snoozeAccount := ""
	if s.RelatedAccountID != nil {
		snoozeAccount = strings.TrimSpace(*s.RelatedAccountID)
	}
	queried := strings.TrimSpace(accountID)

	if snoozeAccount == "" && queried == "" {
		return true
	}
	if snoozeAccount == "" || queried == "" {
		return false
	}
	return snoozeAccount == queried
}

// AnyActive reports whether any snooze in the set suppresses the queried
// pair. This is the single visibility predicate used by the feed, the unread
// counts, and the neglect detector, so the numbers never drift apart.
func AnyActive(snoozes []Snooze, notificationType, accountID string, now time.Time) bool {
	for _, s := range snoozes {
		if s.Matches(notificationType, accountID, now) {
			return true
		}
	}
	return false
}
