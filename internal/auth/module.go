// Package auth issues JWT token pairs for CRM users.
package auth

import (
	"crm_renewal_backend/internal/auth/handler"
	"crm_renewal_backend/internal/auth/repository"
	"crm_renewal_backend/internal/auth/service"
	apphttp "crm_renewal_backend/internal/http"
	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func New(pool *pgxpool.Pool, cfg config.JWTConfig, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string { return "auth" }

// RegisterRoutes mounts the login and refresh routes. They sit outside the
// protected group; everything else requires the tokens issued here.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/auth"))
}
