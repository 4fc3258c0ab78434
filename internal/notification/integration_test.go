package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_renewal_backend/internal/events"
	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/internal/renewal/service"

	"github.com/google/uuid"
)

// engineStore backs the renewal service end to end in memory. Reads observe
// context cancellation the way a database driver would.
type engineStore struct {
	mu         sync.Mutex
	accounts   []domain.Account
	estimates  []domain.Estimate
	cache      []domain.AtRiskRecord
	computedAt time.Time
	computed   bool
}

func (f *engineStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.accounts, nil
}

func (f *engineStore) GetAccount(_ context.Context, id uuid.UUID) (domain.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Account{}, errors.New("not found")
}

func (f *engineStore) ListEstimates(ctx context.Context) ([]domain.Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.estimates, nil
}

func (f *engineStore) UpdateAccountStatus(_ context.Context, id uuid.UUID, from []domain.AccountStatus, to domain.AccountStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.accounts {
		if a.ID != id {
			continue
		}
		for _, s := range from {
			if a.Status == s {
				f.accounts[i].Status = to
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *engineStore) ReadCache(ctx context.Context) ([]domain.AtRiskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache, nil
}

func (f *engineStore) ReplaceCache(_ context.Context, records []domain.AtRiskRecord, computedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = records
	f.computedAt = computedAt
	f.computed = true
	return nil
}

func (f *engineStore) LastComputedAt(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computedAt, f.computed, nil
}

type engineTestCfg struct{}

func (engineTestCfg) GetCacheStalenessWindow() time.Duration { return 5 * time.Minute }
func (engineTestCfg) GetRecomputeTimeout() time.Duration     { return 2 * time.Minute }
func (engineTestCfg) GetRiskWindowDays() int                 { return 180 }
func (engineTestCfg) GetRiskWindowIncludeOverdue() bool      { return true }
func (engineTestCfg) GetRecomputeConcurrency() int           { return 4 }

// ctxCheckWriter fails a write when its context is already dead, like a
// real connection would.
type ctxCheckWriter struct {
	inner  *fakeWriter
	ctxErr error
}

func (w *ctxCheckWriter) UpsertDaily(ctx context.Context, p inapp.UpsertDailyParams) (bool, error) {
	if err := ctx.Err(); err != nil {
		w.ctxErr = err
		return false, err
	}
	return w.inner.UpsertDaily(ctx, p)
}

// A full pass through the seam between the engine and the feed: recompute
// fills the cache and publishes, the subscribed side reconciles, and every
// active user ends up with one renewal reminder per at-risk account. The
// pass context is torn down before the reconcile runs, exactly as the
// coordinator tears it down the moment Recompute returns.
func TestRecomputeEventDrivesReconcileAfterPassContextEnds(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }

	end := "2026-05-01"
	account := domain.Account{ID: uuid.New(), Name: "Soon", Status: domain.StatusActive}
	store := &engineStore{
		accounts: []domain.Account{account},
		estimates: []domain.Estimate{{
			ID:          uuid.New(),
			AccountID:   account.ID,
			Number:      "EST-1",
			Status:      "Closed Won",
			ContractEnd: &end,
		}},
	}

	bus := events.NewInMemoryBus(nil)

	svc := service.NewService(store, nil, bus, engineTestCfg{}, nil)
	svc.SetClock(clock)

	writer := &ctxCheckWriter{inner: newFakeWriter()}
	users := &fakeUsers{users: []inapp.ActiveUser{{ID: uuid.New()}, {ID: uuid.New()}}}
	rec := NewReconciler(writer, users, nil)
	rec.SetCacheReader(store)
	rec.SetClock(clock)

	type outcome struct {
		res Result
		err error
	}
	passDone := make(chan struct{})
	reconciled := make(chan outcome, 1)
	bus.Subscribe(events.CacheRecomputed{}.EventName(), events.HandlerFunc(
		func(ctx context.Context, _ events.Event) error {
			<-passDone
			res, err := rec.Run(ctx)
			reconciled <- outcome{res, err}
			return err
		}))

	passCtx, cancel := context.WithCancel(context.Background())
	n, err := svc.Recompute(passCtx, "test")
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Recompute() = %d records, want 1", n)
	}
	cancel()
	close(passDone)

	select {
	case out := <-reconciled:
		if out.err != nil {
			t.Fatalf("reconcile after recompute failed: %v", out.err)
		}
		if out.res.Created != 2 {
			t.Errorf("Created = %d, want one renewal reminder per user", out.res.Created)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile never ran")
	}

	if writer.ctxErr != nil {
		t.Errorf("feed write saw a dead context: %v", writer.ctxErr)
	}
	for _, p := range writer.inner.params {
		if p.Type != TypeRenewalReminder {
			t.Errorf("row type = %q, want %q", p.Type, TypeRenewalReminder)
		}
		if p.RelatedAccountID == nil || *p.RelatedAccountID != account.ID.String() {
			t.Errorf("row account = %v, want %s", p.RelatedAccountID, account.ID)
		}
	}
}
