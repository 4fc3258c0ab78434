// Package transport defines the wire-level DTOs for the renewal API.
package transport

import (
	"time"

	"crm_renewal_backend/internal/renewal/domain"
)

// AtRiskItem is one at-risk account on the snapshot response.
type AtRiskItem struct {
	AccountID              string                   `json:"accountId"`
	RenewalDate            string                   `json:"renewalDate"`
	DaysUntilRenewal       int                      `json:"daysUntilRenewal"`
	Overdue                bool                     `json:"overdue"`
	ExpiringEstimateID     string                   `json:"expiringEstimateId"`
	ExpiringEstimateNumber string                   `json:"expiringEstimateNumber"`
	HasDuplicates          bool                     `json:"hasDuplicates"`
	DuplicateEstimates     []domain.EstimateSummary `json:"duplicateEstimates,omitempty"`
}

// SnapshotResponse is the at-risk cache snapshot. State is "fresh" or
// "stale"; a stale snapshot is still served, the timestamp tells the client
// how old it is.
type SnapshotResponse struct {
	State      string       `json:"state"`
	ComputedAt *time.Time   `json:"computedAt,omitempty"`
	Items      []AtRiskItem `json:"items"`
	Total      int          `json:"total"`
}

// NeglectResponse is the fresh neglect evaluation for one account.
type NeglectResponse struct {
	AccountID           string  `json:"accountId"`
	Name                string  `json:"name"`
	Neglected           bool    `json:"neglected"`
	RevenueSegment      string  `json:"revenueSegment,omitempty"`
	ThresholdDays       int     `json:"thresholdDays"`
	LastInteractionDate *string `json:"lastInteractionDate,omitempty"`
}

// FromRecord maps a cached record to its wire form.
func FromRecord(rec domain.AtRiskRecord) AtRiskItem {
	return AtRiskItem{
		AccountID:              rec.AccountID.String(),
		RenewalDate:            rec.RenewalDate,
		DaysUntilRenewal:       rec.DaysUntilRenewal,
		Overdue:                rec.DaysUntilRenewal < 0,
		ExpiringEstimateID:     rec.ExpiringEstimateID.String(),
		ExpiringEstimateNumber: rec.ExpiringEstimateNumber,
		HasDuplicates:          rec.HasDuplicates,
		DuplicateEstimates:     rec.DuplicateEstimates,
	}
}
