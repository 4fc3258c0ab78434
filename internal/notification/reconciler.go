package notification

import (
	"context"
	"time"

	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/logger"
)

const opReconcile = "notification.reconciler.run"

// CacheReader provides the current at-risk cache snapshot.
type CacheReader interface {
	ReadCache(ctx context.Context) ([]domain.AtRiskRecord, error)
}

// NeglectSource provides the accounts currently flagged as neglected.
type NeglectSource interface {
	NeglectedAccounts(ctx context.Context) ([]domain.Account, error)
}

type userLister interface {
	ListActiveUsers(ctx context.Context) ([]inapp.ActiveUser, error)
}

type feedWriter interface {
	UpsertDaily(ctx context.Context, p inapp.UpsertDailyParams) (bool, error)
}

// Result summarizes one reconciliation batch.
type Result struct {
	Created      int `json:"created"`
	Deduplicated int `json:"deduplicated"`
	Failed       int `json:"failed"`
}

// Reconciler turns the at-risk cache and the neglect scan into feed rows.
// Dedup happens at the storage layer, once per (user, type, account,
// calendar day), so the reconciler itself is safe to run any number of
// times per day. Snoozes are deliberately not consulted here: suppression
// is a read-time concern, and writing rows regardless keeps a snooze expiry
// from losing history.
type Reconciler struct {
	writer  feedWriter
	users   userLister
	cache   CacheReader
	neglect NeglectSource
	clock   func() time.Time
	log     *logger.Logger
}

func NewReconciler(writer feedWriter, users userLister, log *logger.Logger) *Reconciler {
	return &Reconciler{
		writer: writer,
		users:  users,
		clock:  time.Now,
		log:    log,
	}
}

// SetCacheReader wires the at-risk cache. Set by the composition root to
// avoid a package cycle with the renewal module.
func (r *Reconciler) SetCacheReader(cache CacheReader) { r.cache = cache }

// SetNeglectSource wires the neglect scan.
func (r *Reconciler) SetNeglectSource(neglect NeglectSource) { r.neglect = neglect }

// SetClock overrides the evaluation clock. Used by tests.
func (r *Reconciler) SetClock(clock func() time.Time) {
	if clock != nil {
		r.clock = clock
	}
}

// Run reconciles the current derived facts into every active user's feed.
// One account failing to write is logged and counted, never aborts the
// batch. Source reads failing is different: without the account list or the
// user list there is nothing to reconcile, so those return an error.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	if r == nil || r.writer == nil || r.users == nil {
		return Result{}, apperr.Internal("reconciler not configured").WithOp(opReconcile)
	}

	start := r.clock()
	today := domain.Today(start)

	users, err := r.users.ListActiveUsers(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(users) == 0 {
		return Result{}, nil
	}

	var res Result

	if r.cache != nil {
		records, readErr := r.cache.ReadCache(ctx)
		if readErr != nil {
			return Result{}, readErr
		}
		for _, rec := range records {
			accountID := rec.AccountID.String()
			for _, u := range users {
				r.upsert(ctx, &res, inapp.UpsertDailyParams{
					UserID:           u.ID,
					Type:             TypeRenewalReminder,
					RelatedAccountID: &accountID,
					NotifiedOn:       today,
					Title:            renewalTitle(rec),
					Content:          renewalContent(rec),
				})
			}
		}
	}

	if r.neglect != nil {
		accounts, neglectErr := r.neglect.NeglectedAccounts(ctx)
		if neglectErr != nil {
			return Result{}, neglectErr
		}
		for _, a := range accounts {
			accountID := a.ID.String()
			for _, u := range users {
				r.upsert(ctx, &res, inapp.UpsertDailyParams{
					UserID:           u.ID,
					Type:             TypeNeglectedAccount,
					RelatedAccountID: &accountID,
					NotifiedOn:       today,
					Title:            neglectTitle,
					Content:          neglectContent(a, today),
				})
			}
		}
	}

	if r.log != nil {
		r.log.ReconcilePass(res.Created, res.Deduplicated+res.Failed, float64(time.Since(start).Milliseconds()))
	}

	return res, nil
}

func (r *Reconciler) upsert(ctx context.Context, res *Result, p inapp.UpsertDailyParams) {
	created, err := r.writer.UpsertDaily(ctx, p)
	switch {
	case err != nil:
		res.Failed++
		if r.log != nil {
			r.log.Warn("notification write failed",
				"type", p.Type,
				"account_id", accountLabel(p.RelatedAccountID),
				"user_id", p.UserID.String(),
				"error", err,
			)
		}
	case created:
		res.Created++
	default:
		res.Deduplicated++
	}
}

func accountLabel(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
