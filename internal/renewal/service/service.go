// Package service orchestrates the renewal engine: recompute passes over
// the full account set, neglect scans and the at-risk snapshot read.
package service

import (
	"context"
	"sync"
	"time"

	"crm_renewal_backend/internal/events"
	"crm_renewal_backend/internal/notification/snooze"
	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const opRecompute = "renewal.service.recompute"

// neglectSnoozeType mirrors the notification type stored on snooze rows for
// neglect alerts. The value is part of the stored contract.
const neglectSnoozeType = "neglected_account"

// Store is the persistence surface the engine needs.
type Store interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error)
	ListEstimates(ctx context.Context) ([]domain.Estimate, error)
	UpdateAccountStatus(ctx context.Context, id uuid.UUID, from []domain.AccountStatus, to domain.AccountStatus) (bool, error)
	ReadCache(ctx context.Context) ([]domain.AtRiskRecord, error)
	ReplaceCache(ctx context.Context, records []domain.AtRiskRecord, computedAt time.Time) error
	LastComputedAt(ctx context.Context) (time.Time, bool, error)
}

// SnoozeLister provides active snoozes for the neglect scan.
type SnoozeLister interface {
	ListActive(ctx context.Context) ([]snooze.Snooze, error)
}

// engineStatuses are the statuses the engine may overwrite when flagging an
// account at risk. Anything else (churned, archived, at_risk itself) is
// left alone.
var engineStatuses = []domain.AccountStatus{
	domain.StatusActive,
	domain.StatusProspect,
	domain.StatusNegotiating,
}

type Service struct {
	store       Store
	snoozes     SnoozeLister
	bus         events.Bus
	window      domain.RiskWindow
	concurrency int
	clock       func() time.Time
	log         *logger.Logger
}

func NewService(store Store, snoozes SnoozeLister, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Service {
	window := domain.RiskWindow{
		Days:           cfg.GetRiskWindowDays(),
		IncludeOverdue: cfg.GetRiskWindowIncludeOverdue(),
	}
	if window.Days <= 0 {
		window = domain.DefaultRiskWindow
	}

	concurrency := cfg.GetRecomputeConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	return &Service{
		store:       store,
		snoozes:     snoozes,
		bus:         bus,
		window:      window,
		concurrency: concurrency,
		clock:       time.Now,
		log:         log,
	}
}

// SetClock overrides the evaluation clock. Used by tests.
func (s *Service) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Recompute runs one full classification pass: read a snapshot of accounts
// and estimates, classify every account against the risk window, replace
// the cache and reconcile account statuses. Source changes that land while
// a pass is running are picked up by the next pass.
func (s *Service) Recompute(ctx context.Context, trigger string) (int, error) {
	if s == nil || s.store == nil {
		return 0, apperr.Internal("renewal service not configured").WithOp(opRecompute)
	}

	start := time.Now()
	now := s.clock()
	today := domain.Today(now)

	var (
		accounts  []domain.Account
		estimates []domain.Estimate
	)
	fetch, fetchCtx := errgroup.WithContext(ctx)
	fetch.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(fetchCtx)
		return err
	})
	fetch.Go(func() error {
		var err error
		estimates, err = s.store.ListEstimates(fetchCtx)
		return err
	})
	if err := fetch.Wait(); err != nil {
		s.logRecomputeFailed(err, trigger)
		return 0, err
	}

	byAccount := make(map[uuid.UUID][]domain.Estimate, len(accounts))
	for _, e := range estimates {
		byAccount[e.AccountID] = append(byAccount[e.AccountID], e)
	}

	var (
		mu      sync.Mutex
		records []domain.AtRiskRecord
	)
	classify, classifyCtx := errgroup.WithContext(ctx)
	classify.SetLimit(s.concurrency)
	for _, a := range accounts {
		classify.Go(func() error {
			if err := classifyCtx.Err(); err != nil {
				return err
			}
			rec, ok := domain.Classify(a, byAccount[a.ID], today, s.window, now)
			if !ok {
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := classify.Wait(); err != nil {
		s.logRecomputeFailed(err, trigger)
		return 0, err
	}

	if err := s.store.ReplaceCache(ctx, records, now); err != nil {
		s.logRecomputeFailed(err, trigger)
		return 0, err
	}

	s.reconcileStatuses(ctx, accounts, records)

	if s.bus != nil {
		s.bus.Publish(ctx, events.CacheRecomputed{
			BaseEvent:  events.NewBaseEvent(),
			Records:    len(records),
			ComputedAt: now,
		})
	}
	if s.log != nil {
		s.log.RecomputePass(len(records), float64(time.Since(start).Milliseconds()), trigger)
	}

	return len(records), nil
}

func (s *Service) logRecomputeFailed(err error, trigger string) {
	if s.log != nil {
		s.log.RecomputeFailed(err, trigger)
	}
}

// reconcileStatuses applies the engine's only account mutation: flag
// at-risk accounts and clear the flag when the condition lapses. Failures
// here are logged and skipped; the cache is already consistent and the next
// pass retries.
func (s *Service) reconcileStatuses(ctx context.Context, accounts []domain.Account, records []domain.AtRiskRecord) {
	atRisk := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		atRisk[rec.AccountID] = true
	}

	for _, a := range accounts {
		var (
			changed bool
			err     error
			to      domain.AccountStatus
		)
		switch {
		case atRisk[a.ID] && a.Status != domain.StatusAtRisk:
			to = domain.StatusAtRisk
			changed, err = s.store.UpdateAccountStatus(ctx, a.ID, engineStatuses, to)
		case !atRisk[a.ID] && a.Status == domain.StatusAtRisk:
			to = domain.StatusActive
			changed, err = s.store.UpdateAccountStatus(ctx, a.ID, []domain.AccountStatus{domain.StatusAtRisk}, to)
		default:
			continue
		}
		if err != nil {
			if s.log != nil {
				s.log.Warn("account status update failed", "account_id", a.ID.String(), "error", err)
			}
			continue
		}
		if changed && s.bus != nil {
			s.bus.Publish(ctx, events.AccountStatusChanged{
				BaseEvent: events.NewBaseEvent(),
				AccountID: a.ID,
				OldStatus: string(a.Status),
				NewStatus: string(to),
			})
		}
	}
}

// Snapshot returns the cached at-risk records with the last recompute time.
// computed is false before the first ever pass.
func (s *Service) Snapshot(ctx context.Context) ([]domain.AtRiskRecord, time.Time, bool, error) {
	records, err := s.store.ReadCache(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	computedAt, computed, err := s.store.LastComputedAt(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return records, computedAt, computed, nil
}

// NeglectedAccounts scans all accounts and returns those currently
// neglected, with snoozed accounts excluded.
func (s *Service) NeglectedAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	today := domain.Today(now)
	snoozed := s.neglectSnoozedFunc(ctx, now)

	var neglected []domain.Account
	for _, a := range accounts {
		if domain.IsNeglected(a, today, snoozed) {
			neglected = append(neglected, a)
		}
	}

	return neglected, nil
}

// EvaluateNeglect freshly evaluates one account.
func (s *Service) EvaluateNeglect(ctx context.Context, id uuid.UUID) (domain.Account, bool, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return domain.Account{}, false, err
	}

	now := s.clock()
	return a, domain.IsNeglected(a, domain.Today(now), s.neglectSnoozedFunc(ctx, now)), nil
}

func (s *Service) neglectSnoozedFunc(ctx context.Context, now time.Time) domain.SnoozedFunc {
	if s.snoozes == nil {
		return func(string) bool { return false }
	}
	active, err := s.snoozes.ListActive(ctx)
	if err != nil {
		// Treat an unavailable snooze set as empty; a neglect alert the
		// user snoozed reappearing is the safer failure mode than alerts
		// silently vanishing.
		if s.log != nil {
			s.log.Warn("snooze lookup failed, neglect scan unfiltered", "error", err)
		}
		return func(string) bool { return false }
	}
	return func(accountID string) bool {
		return snooze.AnyActive(active, neglectSnoozeType, accountID, now)
	}
}
