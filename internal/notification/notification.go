// Package notification reconciles derived CRM facts into the per-user
// in-app notification feed and the daily email digest.
package notification

import (
	"fmt"

	"crm_renewal_backend/internal/renewal/domain"
)

// Notification types emitted by the reconciler. Snoozes reference these
// values, so they are part of the stored contract.
const (
	TypeRenewalReminder  = "renewal_reminder"
	TypeNeglectedAccount = "neglected_account"
)

func renewalTitle(rec domain.AtRiskRecord) string {
	if rec.DaysUntilRenewal < 0 {
		return "Contract renewal overdue"
	}
	return "Contract renewal due"
}

func renewalContent(rec domain.AtRiskRecord) string {
	var when string
	switch {
	case rec.DaysUntilRenewal < 0:
		when = fmt.Sprintf("was due %d day(s) ago on %s", -rec.DaysUntilRenewal, rec.RenewalDate)
	case rec.DaysUntilRenewal == 0:
		when = fmt.Sprintf("is due today (%s)", rec.RenewalDate)
	default:
		when = fmt.Sprintf("is due in %d day(s) on %s", rec.DaysUntilRenewal, rec.RenewalDate)
	}

	msg := fmt.Sprintf("Contract %s %s.", rec.ExpiringEstimateNumber, when)
	if rec.HasDuplicates {
		msg += fmt.Sprintf(" %d other signed contract(s) cover the same period; review before renewing.", len(rec.DuplicateEstimates))
	}
	return msg
}

const neglectTitle = "Account needs attention"

func neglectContent(a domain.Account, today string) string {
	if a.LastInteractionDate == nil {
		return fmt.Sprintf("%s has never been contacted.", a.Name)
	}
	last, ok := domain.NormalizeDate(*a.LastInteractionDate)
	if !ok {
		return fmt.Sprintf("%s has no valid recorded interaction date.", a.Name)
	}
	days := domain.DaysBetween(last, today)
	return fmt.Sprintf("%s has had no interaction for %d day(s) (last contact %s).", a.Name, days, last)
}
