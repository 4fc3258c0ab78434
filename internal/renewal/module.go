// Package renewal wires the renewal engine: source reads, classification,
// the at-risk cache and its HTTP surface.
package renewal

import (
	"crm_renewal_backend/internal/events"
	apphttp "crm_renewal_backend/internal/http"
	"crm_renewal_backend/internal/renewal/cache"
	"crm_renewal_backend/internal/renewal/handler"
	"crm_renewal_backend/internal/renewal/repository"
	"crm_renewal_backend/internal/renewal/service"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	repo    *repository.Repository
	service *service.Service
	handler *handler.HTTPHandler
}

// SnoozeLister re-exports the service dependency for composition roots.
type SnoozeLister = service.SnoozeLister

// New creates the renewal module. The snooze lister comes from the
// notification module; the composition root passes it in to keep the
// dependency one-way.
func New(pool *pgxpool.Pool, snoozes SnoozeLister, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Module {
	repo := repository.NewRepository(pool)
	svc := service.NewService(repo, snoozes, bus, cfg, log)

	return &Module{
		repo:    repo,
		service: svc,
		handler: handler.NewHTTPHandler(svc, cfg.GetCacheStalenessWindow()),
	}
}

func (m *Module) Name() string { return "renewal" }

// RegisterRoutes mounts the renewal and account routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRenewalRoutes(ctx.Protected.Group("/renewals"))
	m.handler.RegisterAccountRoutes(ctx.Protected.Group("/accounts"))
}

// SetRefresher wires the manual refresh trigger into the HTTP handler.
func (m *Module) SetRefresher(r handler.Refresher) { m.handler.SetRefresher(r) }

// Service exposes the engine for scheduler task handlers and the
// notification module's neglect source.
func (m *Module) Service() *service.Service { return m.service }

// Repository exposes the store for the notification module's cache reads
// and account name lookups.
func (m *Module) Repository() *repository.Repository { return m.repo }

// NewCoordinator builds a cache coordinator over this module's service.
// Only the scheduler process runs one.
func (m *Module) NewCoordinator(cfg config.EngineConfig, log *logger.Logger) *cache.Coordinator {
	return cache.NewCoordinator(m.service, cfg, log)
}
