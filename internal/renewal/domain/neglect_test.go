package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsNeglectedSegmentThresholds(t *testing.T) {
	today := "2026-02-01"

	cases := []struct {
		name            string
		segment         string
		lastInteraction string
		want            bool
	}{
		{"segment A, 31 days ago", "A", "2026-01-01", true},
		{"segment A, 29 days ago", "A", "2026-01-03", false},
		{"segment A, exactly 30 days is not neglected", "A", "2026-01-02", false},
		{"segment B, 31 days ago", "B", "2026-01-01", true},
		{"segment C, 31 days ago", "C", "2026-01-01", false},
		{"segment C, 91 days ago", "C", "2025-11-02", true},
		{"segment C, exactly 90 days is not neglected", "C", "2025-11-03", false},
		{"missing segment defaults to C threshold", "", "2026-01-01", false},
		{"segment D uses the low-touch threshold", "D", "2025-10-01", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{
				ID:                  uuid.New(),
				Status:              StatusActive,
				RevenueSegment:      tc.segment,
				LastInteractionDate: strPtr(tc.lastInteraction),
			}
			if got := IsNeglected(account, today, nil); got != tc.want {
				t.Errorf("IsNeglected = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsNeglectedMissingInteractionDate(t *testing.T) {
	today := "2026-02-01"

	for _, segment := range []string{"A", "B", "C", "D", ""} {
		account := Account{ID: uuid.New(), Status: StatusActive, RevenueSegment: segment}
		if !IsNeglected(account, today, nil) {
			t.Errorf("segment %q: account with no interaction date must be neglected", segment)
		}
	}
}

func TestIsNeglectedExclusions(t *testing.T) {
	today := "2026-02-01"
	stale := strPtr("2020-01-01")

	archived := Account{ID: uuid.New(), Archived: true, LastInteractionDate: stale}
	if IsNeglected(archived, today, nil) {
		t.Error("archived account must not be neglected")
	}

	optedOut := Account{ID: uuid.New(), ICPStatus: strPtr(ICPStatusNA), LastInteractionDate: stale}
	if IsNeglected(optedOut, today, nil) {
		t.Error("icp_status \"na\" must permanently exclude the account")
	}

	otherICP := Account{ID: uuid.New(), ICPStatus: strPtr("qualified"), LastInteractionDate: stale}
	if !IsNeglected(otherICP, today, nil) {
		t.Error("other icp_status values must not exclude the account")
	}

	snoozedAccount := Account{ID: uuid.New(), LastInteractionDate: stale}
	snoozed := func(accountID string) bool { return accountID == snoozedAccount.ID.String() }
	if IsNeglected(snoozedAccount, today, snoozed) {
		t.Error("active snooze must exclude the account")
	}
	if !IsNeglected(Account{ID: uuid.New(), LastInteractionDate: stale}, today, snoozed) {
		t.Error("snooze for another account must not exclude this one")
	}
}

func TestIsNeglectedMalformedInteractionDate(t *testing.T) {
	account := Account{ID: uuid.New(), LastInteractionDate: strPtr("last week")}
	if !IsNeglected(account, "2026-02-01", nil) {
		t.Error("uninterpretable interaction date must count as never contacted")
	}
}
