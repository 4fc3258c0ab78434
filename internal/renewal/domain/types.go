// Package domain contains the pure business rules of the renewal engine:
// renewal date resolution, duplicate contract detection, at-risk
// classification, and neglect detection. Functions here never perform I/O
// and never return errors for malformed input; bad records are dropped or
// evaluated conservatively, and the caller decides whether to log.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is the lifecycle status of a CRM account.
type AccountStatus string

const (
	StatusActive      AccountStatus = "active"
	StatusProspect    AccountStatus = "prospect"
	StatusNegotiating AccountStatus = "negotiating"
	StatusAtRisk      AccountStatus = "at_risk"
	StatusChurned     AccountStatus = "churned"
	StatusArchived    AccountStatus = "archived"
)

// Revenue segment neglect thresholds. Fixed business policy, not
// user-configurable.
const (
	highTouchNeglectDays = 30 // segments A and B
	lowTouchNeglectDays  = 90 // segments C and D, and missing segment
)

// ICPStatusNA permanently excludes an account from neglect checks.
const ICPStatusNA = "na"

// Account is the engine's view of a CRM account. The archived flag may
// diverge from Status; both must be checked.
type Account struct {
	ID                  uuid.UUID
	Name                string
	Status              AccountStatus
	Archived            bool
	RevenueSegment      string // "A".."D"; empty defaults to "C"
	ICPStatus           *string
	LastInteractionDate *string // normalized YYYY-MM-DD, nil when never contacted
}

// Estimate is a historical estimate/contract row for an account. Status is
// free text as imported; ContractEnd is a raw date value that may carry a
// time suffix or be malformed.
type Estimate struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Number      string
	Status      string
	ContractEnd *string
}

// EstimateSummary is the compact form of a conflicting estimate stored on an
// at-risk record.
type EstimateSummary struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	ContractEnd string    `json:"contractEnd"`
}

// AtRiskRecord is the cached derived fact for one at-risk account.
type AtRiskRecord struct {
	AccountID              uuid.UUID
	RenewalDate            string // YYYY-MM-DD
	DaysUntilRenewal       int    // negative = overdue
	ExpiringEstimateID     uuid.UUID
	ExpiringEstimateNumber string
	HasDuplicates          bool
	DuplicateEstimates     []EstimateSummary
	ComputedAt             time.Time
}

// RiskWindow defines the renewal risk window. Days is the inclusive upper
// bound. IncludeOverdue selects between the two legacy behaviors: when false
// the window is [0, Days]; when true it is (-inf, Days], so accounts whose
// renewal already passed stay flagged.
type RiskWindow struct {
	Days           int
	IncludeOverdue bool
}

// DefaultRiskWindow flags overdue renewals; an account whose contract already
// lapsed needs attention more urgently, not less.
var DefaultRiskWindow = RiskWindow{Days: 180, IncludeOverdue: true}

// Contains reports whether daysUntilRenewal falls inside the window.
func (w RiskWindow) Contains(daysUntilRenewal int) bool {
	if daysUntilRenewal > w.Days {
		return false
	}
	if daysUntilRenewal < 0 && !w.IncludeOverdue {
		return false
	}
	return true
}

// NeglectThresholdDays returns the interaction-age threshold for a revenue
// segment. Missing segment defaults to C.
func NeglectThresholdDays(segment string) int {
	switch segment {
	case "A", "B":
		return highTouchNeglectDays
	default:
		return lowTouchNeglectDays
	}
}
