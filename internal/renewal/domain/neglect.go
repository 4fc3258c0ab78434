package domain

// SnoozedFunc reports whether an active neglected_account snooze covers the
// given account. The notification module supplies the implementation so this
// predicate stays free of snooze storage details.
type SnoozedFunc func(accountID string) bool

// IsNeglected reports whether an account has gone too long without an
// interaction for its revenue segment.
//
// Exclusions, in order: archived accounts, accounts with icp_status "na"
// (permanent opt-out), and accounts covered by an active neglected_account
// snooze. An account with no recorded interaction at all is always neglected.
// Otherwise the age must strictly exceed the segment threshold.
func IsNeglected(account Account, today string, snoozed SnoozedFunc) bool {
	if account.Archived {
		return false
	}
	if account.ICPStatus != nil && *account.ICPStatus == ICPStatusNA {
		return false
	}
	if snoozed != nil && snoozed(account.ID.String()) {
		return false
	}

	if account.LastInteractionDate == nil {
		return true
	}
	last, ok := NormalizeDate(*account.LastInteractionDate)
	if !ok {
		// Uninterpretable interaction date is treated like none at all.
		return true
	}

	return DaysBetween(last, today) > NeglectThresholdDays(account.RevenueSegment)
}
