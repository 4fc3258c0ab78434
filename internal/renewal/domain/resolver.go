package domain

import "strings"

// wonSpellings covers the status values the spreadsheet importer and the
// legacy CRM have produced for a signed deal. Matching is done on a
// normalized form (lowercase, separators collapsed to single spaces).
var wonSpellings = map[string]struct{}{
	"won":        {},
	"win":        {},
	"closed won": {},
	"closedwon":  {},
	"signed":     {},
	"contracted": {},
	"gewonnen":   {},
}

// IsWonStatus reports whether a free-text estimate status signifies a
// signed/contracted deal.
func IsWonStatus(status string) bool {
	normalized := strings.ToLower(strings.TrimSpace(status))
	normalized = strings.NewReplacer("-", " ", "_", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	_, ok := wonSpellings[normalized]
	return ok
}

// ResolveRenewalDate derives the contract renewal date for one account from
// its estimates: the maximum contract_end among won estimates that carry a
// parseable end date. Returns the driving estimate and the normalized date,
// or ok=false when no estimate qualifies — never a default date.
//
// Normalized YYYY-MM-DD strings compare lexicographically in date order, so
// the maximum is taken with a plain string compare. Malformed dates are
// dropped silently.
func ResolveRenewalDate(estimates []Estimate) (Estimate, string, bool) {
	var (
		best     Estimate
		bestDate string
		found    bool
	)

	for _, est := range estimates {
		if !IsWonStatus(est.Status) || est.ContractEnd == nil {
			continue
		}
		date, ok := NormalizeDate(*est.ContractEnd)
		if !ok {
			continue
		}
		if !found || date > bestDate {
			best = est
			bestDate = date
			found = true
		}
	}

	return best, bestDate, found
}
