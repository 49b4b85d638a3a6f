package app

import (
	"time"

	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/go-chi/chi/v5"
)

const requestTimeout = 60 * time.Second

type routeModule interface {
	RegisterRoutes(r chi.Router)
}

// tenantRoutes mounts modules behind tenant resolution, leaving the
// micro's own health routes open. Streams are long lived and skip the
// request timeout.
type tenantRoutes struct {
	resolver *tenant.Resolver
	timeout  time.Duration
	modules  []routeModule
	streams  []routeModule
}

func (t *tenantRoutes) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(t.resolver.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(t.timeout))
			for _, m := range t.modules {
				m.RegisterRoutes(r)
			}
		})

		for _, m := range t.streams {
			m.RegisterRoutes(r)
		}
	})
}
