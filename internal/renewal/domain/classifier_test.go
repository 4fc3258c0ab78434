package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func wonEstimate(accountID uuid.UUID, number, contractEnd string) Estimate {
	return Estimate{
		ID:          uuid.New(),
		AccountID:   accountID,
		Number:      number,
		Status:      "won",
		ContractEnd: strPtr(contractEnd),
	}
}

func TestClassifyBoundary(t *testing.T) {
	today := "2026-01-01"
	computedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		contractEnd string
		window      RiskWindow
		wantOK      bool
		wantDays    int
	}{
		{"exactly 180 days is included", "2026-06-30", DefaultRiskWindow, true, 180},
		{"181 days is excluded", "2026-07-01", DefaultRiskWindow, false, 0},
		{"zero days is included", "2026-01-01", DefaultRiskWindow, true, 0},
		{"overdue included when window allows", "2025-12-01", RiskWindow{Days: 180, IncludeOverdue: true}, true, -31},
		{"overdue excluded when window floors at zero", "2025-12-01", RiskWindow{Days: 180, IncludeOverdue: false}, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := Account{ID: uuid.New(), Status: StatusActive}
			estimates := []Estimate{wonEstimate(account.ID, "E-1", tc.contractEnd)}

			record, ok := Classify(account, estimates, today, tc.window, computedAt)
			if ok != tc.wantOK {
				t.Fatalf("Classify ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && record.DaysUntilRenewal != tc.wantDays {
				t.Errorf("days until renewal = %d, want %d", record.DaysUntilRenewal, tc.wantDays)
			}
		})
	}
}

func TestClassifyExclusions(t *testing.T) {
	today := "2026-01-01"
	computedAt := time.Now()

	archived := Account{ID: uuid.New(), Status: StatusActive, Archived: true}
	if _, ok := Classify(archived, []Estimate{wonEstimate(archived.ID, "E-1", "2026-03-01")}, today, DefaultRiskWindow, computedAt); ok {
		t.Error("archived account must not be classified at risk")
	}

	// The archived flag may diverge from status; the flag wins.
	flagDiverged := Account{ID: uuid.New(), Status: StatusAtRisk, Archived: true}
	if _, ok := Classify(flagDiverged, []Estimate{wonEstimate(flagDiverged.ID, "E-1", "2026-03-01")}, today, DefaultRiskWindow, computedAt); ok {
		t.Error("archived flag must exclude regardless of status")
	}

	noRenewal := Account{ID: uuid.New(), Status: StatusActive}
	if _, ok := Classify(noRenewal, []Estimate{{ID: uuid.New(), AccountID: noRenewal.ID, Status: "open"}}, today, DefaultRiskWindow, computedAt); ok {
		t.Error("account without a resolvable renewal date must not be classified")
	}
}

func TestClassifyIdempotent(t *testing.T) {
	today := "2026-01-01"
	computedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	account := Account{ID: uuid.New(), Status: StatusActive}
	estimates := []Estimate{
		wonEstimate(account.ID, "E-1", "2026-04-01"),
		wonEstimate(account.ID, "E-2", "2026-02-01"),
	}

	first, ok1 := Classify(account, estimates, today, DefaultRiskWindow, computedAt)
	second, ok2 := Classify(account, estimates, today, DefaultRiskWindow, computedAt)

	if !ok1 || !ok2 {
		t.Fatal("expected both runs to classify the account at risk")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("classification is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestClassifyAnnotatesDuplicates(t *testing.T) {
	today := "2026-01-01"
	account := Account{ID: uuid.New(), Status: StatusActive}
	estimates := []Estimate{
		wonEstimate(account.ID, "E-1", "2026-05-01"),
		wonEstimate(account.ID, "E-2", "2026-03-01"),
	}

	record, ok := Classify(account, estimates, today, DefaultRiskWindow, time.Now())
	if !ok {
		t.Fatal("expected at-risk classification")
	}
	if record.RenewalDate != "2026-05-01" {
		t.Errorf("renewal date = %q, want the latest end date 2026-05-01", record.RenewalDate)
	}
	if !record.HasDuplicates || len(record.DuplicateEstimates) != 1 {
		t.Errorf("expected exactly one duplicate annotation, got %+v", record.DuplicateEstimates)
	}
	if record.DuplicateEstimates[0].Number != "E-2" {
		t.Errorf("duplicate = %s, want E-2", record.DuplicateEstimates[0].Number)
	}
}
