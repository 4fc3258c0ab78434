package domain

import "github.com/google/uuid"

// DetectDuplicateContracts returns the other won, contract_end-bearing
// estimates whose end dates also fall inside the risk window relative to
// today — i.e. more than one contract is live for the account at once.
//
// The result only annotates the at-risk record (has_duplicates plus the raw
// conflicting set); it never alters the resolved renewal date, which always
// uses the single latest end date from ResolveRenewalDate.
func DetectDuplicateContracts(estimates []Estimate, expiringID uuid.UUID, today string, window RiskWindow) []EstimateSummary {
	var conflicts []EstimateSummary

	for _, est := range estimates {
		if est.ID == expiringID {
			continue
		}
		if !IsWonStatus(est.Status) || est.ContractEnd == nil {
			continue
		}
		date, ok := NormalizeDate(*est.ContractEnd)
		if !ok {
			continue
		}
		if !window.Contains(DaysBetween(today, date)) {
			continue
		}
		conflicts = append(conflicts, EstimateSummary{
			ID:          est.ID,
			Number:      est.Number,
			Status:      est.Status,
			ContractEnd: date,
		})
	}

	return conflicts
}
