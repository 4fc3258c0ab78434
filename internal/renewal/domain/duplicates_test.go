package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestDetectDuplicateContracts(t *testing.T) {
	accountID := uuid.New()
	today := "2026-01-01"
	window := RiskWindow{Days: 180, IncludeOverdue: true}

	expiring := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-1", Status: "won", ContractEnd: strPtr("2026-06-01")}
	inWindow := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-2", Status: "won", ContractEnd: strPtr("2026-03-01")}
	outOfWindow := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-3", Status: "won", ContractEnd: strPtr("2027-06-01")}
	lost := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-4", Status: "lost", ContractEnd: strPtr("2026-03-01")}
	noEnd := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-5", Status: "won"}

	estimates := []Estimate{expiring, inWindow, outOfWindow, lost, noEnd}

	conflicts := DetectDuplicateContracts(estimates, expiring.ID, today, window)
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	if conflicts[0].ID != inWindow.ID {
		t.Errorf("conflict = %s, want %s", conflicts[0].Number, inWindow.Number)
	}
	if conflicts[0].ContractEnd != "2026-03-01" {
		t.Errorf("conflict contract end = %q, want 2026-03-01", conflicts[0].ContractEnd)
	}
}

func TestDetectDuplicateContractsOverdueRespectsWindowFloor(t *testing.T) {
	accountID := uuid.New()
	today := "2026-01-01"

	expiring := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-1", Status: "won", ContractEnd: strPtr("2026-02-01")}
	overdue := Estimate{ID: uuid.New(), AccountID: accountID, Number: "E-2", Status: "won", ContractEnd: strPtr("2025-11-01")}
	estimates := []Estimate{expiring, overdue}

	withOverdue := DetectDuplicateContracts(estimates, expiring.ID, today, RiskWindow{Days: 180, IncludeOverdue: true})
	if len(withOverdue) != 1 {
		t.Errorf("IncludeOverdue=true: got %d conflicts, want 1", len(withOverdue))
	}

	withoutOverdue := DetectDuplicateContracts(estimates, expiring.ID, today, RiskWindow{Days: 180, IncludeOverdue: false})
	if len(withoutOverdue) != 0 {
		t.Errorf("IncludeOverdue=false: got %d conflicts, want 0", len(withoutOverdue))
	}
}

func TestDetectDuplicateContractsNoneForSingleContract(t *testing.T) {
	expiring := Estimate{ID: uuid.New(), Number: "E-1", Status: "won", ContractEnd: strPtr("2026-06-01")}

	conflicts := DetectDuplicateContracts([]Estimate{expiring}, expiring.ID, "2026-01-01", DefaultRiskWindow)
	if len(conflicts) != 0 {
		t.Errorf("got %d conflicts for a single contract, want 0", len(conflicts))
	}
}
