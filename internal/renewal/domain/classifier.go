package domain

import "time"

// Classify evaluates one account against the risk window and returns its
// at-risk record, or ok=false when the account does not qualify.
//
// Deterministic for a fixed (account, estimates, today): running it twice
// yields identical output. The account status transition that accompanies
// entering or leaving the window is performed by the service layer, not here.
func Classify(account Account, estimates []Estimate, today string, window RiskWindow, computedAt time.Time) (AtRiskRecord, bool) {
	if account.Archived {
		return AtRiskRecord{}, false
	}

	expiring, renewalDate, ok := ResolveRenewalDate(estimates)
	if !ok {
		return AtRiskRecord{}, false
	}

	daysUntil := DaysBetween(today, renewalDate)
	if !window.Contains(daysUntil) {
		return AtRiskRecord{}, false
	}

	duplicates := DetectDuplicateContracts(estimates, expiring.ID, today, window)

	return AtRiskRecord{
		AccountID:              account.ID,
		RenewalDate:            renewalDate,
		DaysUntilRenewal:       daysUntil,
		ExpiringEstimateID:     expiring.ID,
		ExpiringEstimateNumber: expiring.Number,
		HasDuplicates:          len(duplicates) > 0,
		DuplicateEstimates:     duplicates,
		ComputedAt:             computedAt,
	}, true
}
