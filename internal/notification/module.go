package notification

import (
	"crm_renewal_backend/internal/email"
	apphttp "crm_renewal_backend/internal/http"
	notifhandler "crm_renewal_backend/internal/notification/handler"
	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/notification/snooze"
	"crm_renewal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module owns the notification feed, snoozes, reconciliation and the email
// digest. Reconciliation runs from scheduler tasks: every successful
// recompute enqueues one, so the feed catches up right after each pass.
type Module struct {
	log          *logger.Logger
	inAppService *inapp.Service
	inAppRepo    *inapp.Repository
	snoozeRepo   *snooze.Repository
	reconciler   *Reconciler
	digest       *Digest
	handler      *notifhandler.HTTPHandler
}

// New creates the notification module.
func New(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	inAppRepo := inapp.NewRepository(pool)
	snoozeRepo := snooze.NewRepository(pool)
	inAppSvc := inapp.NewService(inAppRepo, snoozeRepo, log)

	return &Module{
		log:          log,
		inAppService: inAppSvc,
		inAppRepo:    inAppRepo,
		snoozeRepo:   snoozeRepo,
		reconciler:   NewReconciler(inAppRepo, inAppRepo, log),
		digest:       NewDigest(inAppRepo, snoozeRepo, sender, log),
		handler:      notifhandler.NewHTTPHandler(inAppSvc, snoozeRepo),
	}
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the notification feed and snooze routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// SetCacheReader wires the at-risk cache into reconciliation and the digest.
func (m *Module) SetCacheReader(cache CacheReader) {
	m.reconciler.SetCacheReader(cache)
	m.digest.SetCacheReader(cache)
}

// SetNeglectSource wires the neglect scan into reconciliation.
func (m *Module) SetNeglectSource(neglect NeglectSource) {
	m.reconciler.SetNeglectSource(neglect)
}

// SetAccountNamer wires account display names into the digest.
func (m *Module) SetAccountNamer(names AccountNamer) {
	m.digest.SetAccountNamer(names)
}

// SnoozeReader exposes the snooze store for the renewal module's neglect
// scan.
func (m *Module) SnoozeReader() *snooze.Repository { return m.snoozeRepo }

// Reconciler exposes the reconciler for scheduler task handlers.
func (m *Module) Reconciler() *Reconciler { return m.reconciler }

// Digest exposes the digest builder for scheduler task handlers.
func (m *Module) Digest() *Digest { return m.digest }
