package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/renewal/domain"

	"github.com/google/uuid"
)

type fakeWriter struct {
	seen    map[string]bool
	failFor string // account id whose writes fail
	params  []inapp.UpsertDailyParams
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{seen: make(map[string]bool)}
}

func (w *fakeWriter) UpsertDaily(_ context.Context, p inapp.UpsertDailyParams) (bool, error) {
	account := ""
	if p.RelatedAccountID != nil {
		account = *p.RelatedAccountID
	}
	if w.failFor != "" && account == w.failFor {
		return false, errors.New("write failed")
	}
	key := strings.Join([]string{p.UserID.String(), p.Type, account, p.NotifiedOn}, "|")
	if w.seen[key] {
		return false, nil
	}
	w.seen[key] = true
	w.params = append(w.params, p)
	return true, nil
}

type fakeUsers struct {
	users []inapp.ActiveUser
	err   error
}

func (f *fakeUsers) ListActiveUsers(context.Context) ([]inapp.ActiveUser, error) {
	return f.users, f.err
}

type fakeCache struct {
	records []domain.AtRiskRecord
	err     error
}

func (f *fakeCache) ReadCache(context.Context) ([]domain.AtRiskRecord, error) {
	return f.records, f.err
}

type fakeNeglect struct {
	accounts []domain.Account
	err      error
}

func (f *fakeNeglect) NeglectedAccounts(context.Context) ([]domain.Account, error) {
	return f.accounts, f.err
}

func atRiskRecord(days int) domain.AtRiskRecord {
	return domain.AtRiskRecord{
		AccountID:              uuid.New(),
		RenewalDate:            "2026-06-01",
		DaysUntilRenewal:       days,
		ExpiringEstimateID:     uuid.New(),
		ExpiringEstimateNumber: fmt.Sprintf("EST-%d", days),
	}
}

func TestReconcilerWritesBothTypesForEveryUser(t *testing.T) {
	writer := newFakeWriter()
	users := &fakeUsers{users: []inapp.ActiveUser{
		{ID: uuid.New(), Email: "a@example.com"},
		{ID: uuid.New(), Email: "b@example.com"},
	}}

	lastContact := "2025-10-01"
	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(&fakeCache{records: []domain.AtRiskRecord{atRiskRecord(30), atRiskRecord(5)}})
	rec.SetNeglectSource(&fakeNeglect{accounts: []domain.Account{
		{ID: uuid.New(), Name: "Acme", RevenueSegment: "A", LastInteractionDate: &lastContact},
	}})
	rec.SetClock(func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) })

	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 2 at-risk records + 1 neglected account, for 2 users each.
	if res.Created != 6 {
		t.Errorf("Created = %d, want 6", res.Created)
	}
	if res.Failed != 0 || res.Deduplicated != 0 {
		t.Errorf("unexpected Failed=%d Deduplicated=%d", res.Failed, res.Deduplicated)
	}

	for _, p := range writer.params {
		if p.NotifiedOn != "2026-02-01" {
			t.Errorf("NotifiedOn = %q, want 2026-02-01", p.NotifiedOn)
		}
		if p.RelatedAccountID == nil || *p.RelatedAccountID == "" {
			t.Error("expected a related account id on every row")
		}
	}
}

func TestReconcilerSameDayRerunDeduplicates(t *testing.T) {
	writer := newFakeWriter()
	users := &fakeUsers{users: []inapp.ActiveUser{{ID: uuid.New()}}}

	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(&fakeCache{records: []domain.AtRiskRecord{atRiskRecord(30)}})
	rec.SetClock(func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) })

	first, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("first Created = %d, want 1", first.Created)
	}

	second, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Created != 0 || second.Deduplicated != 1 {
		t.Errorf("second run Created=%d Deduplicated=%d, want 0 and 1", second.Created, second.Deduplicated)
	}
}

func TestReconcilerNextDayCreatesAgain(t *testing.T) {
	writer := newFakeWriter()
	users := &fakeUsers{users: []inapp.ActiveUser{{ID: uuid.New()}}}

	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(&fakeCache{records: []domain.AtRiskRecord{atRiskRecord(30)}})

	day := time.Date(2026, 2, 1, 23, 0, 0, 0, time.UTC)
	rec.SetClock(func() time.Time { return day })
	if _, err := rec.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	day = day.Add(2 * time.Hour) // crosses midnight UTC
	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1 after the day rolled over", res.Created)
	}
}

func TestReconcilerContinuesPastFailingAccount(t *testing.T) {
	writer := newFakeWriter()
	users := &fakeUsers{users: []inapp.ActiveUser{{ID: uuid.New()}}}

	bad := atRiskRecord(10)
	good := atRiskRecord(20)
	writer.failFor = bad.AccountID.String()

	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(&fakeCache{records: []domain.AtRiskRecord{bad, good}})
	rec.SetClock(func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) })

	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1; batch must continue past a failing account", res.Created)
	}
}

func TestReconcilerSourceReadFailureAborts(t *testing.T) {
	writer := newFakeWriter()
	users := &fakeUsers{users: []inapp.ActiveUser{{ID: uuid.New()}}}

	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(&fakeCache{err: errors.New("cache unavailable")})

	if _, err := rec.Run(context.Background()); err == nil {
		t.Error("expected error when the cache read fails")
	}
	if len(writer.params) != 0 {
		t.Errorf("no rows should be written, got %d", len(writer.params))
	}
}

func TestReconcilerNoActiveUsers(t *testing.T) {
	writer := newFakeWriter()
	rec := NewReconciler(writer, &fakeUsers{}, nil)
	rec.SetCacheReader(&fakeCache{records: []domain.AtRiskRecord{atRiskRecord(30)}})

	res, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Created != 0 || len(writer.params) != 0 {
		t.Errorf("nothing should be written without recipients, got %+v", res)
	}
}
