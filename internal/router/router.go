package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/handler"
	mw "github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/middleware"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Entities  *handler.EntityHandler
	Functions *handler.FunctionHandler
	Admin     *handler.AdminHandler
	Dashboard *handler.DashboardHandler
}

func New(logger *zap.Logger, verifier auth.Verifier, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Recovery(logger))
	r.Use(mw.Logger(logger))
	r.Use(mw.CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/verify", h.Auth.Verify)
		r.Get("/auth/me", h.Auth.Me)
		r.Get("/auth/status", h.Auth.Status)
		r.Post("/auth/logout", h.Auth.Logout)
		r.Post("/functions/{name}", h.Functions.Invoke)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))

			r.Route("/entities/{entity}", func(r chi.Router) {
				r.With(auth.RequirePermission(auth.PermEntitiesRead)).Get("/", h.Entities.List)
				r.With(auth.RequirePermission(auth.PermEntitiesWrite)).Post("/", h.Entities.Create)
				r.With(auth.RequirePermission(auth.PermEntitiesRead)).Get("/{id}", h.Entities.Get)
				r.With(auth.RequirePermission(auth.PermEntitiesWrite)).Patch("/{id}", h.Entities.Update)
				r.With(auth.RequirePermission(auth.PermEntitiesWrite)).Delete("/{id}", h.Entities.Delete)
			})

			r.With(auth.RequirePermission(auth.PermReportsRead)).Get("/reports/summary", h.Dashboard.Summary)
			r.With(auth.RequirePermission(auth.PermSeedManage)).Post("/seed", h.Admin.Seed)

			r.Route("/backups", func(r chi.Router) {
				r.Use(auth.RequirePermission(auth.PermBackupsManage))
				r.Get("/", h.Admin.ListBackups)
				r.Post("/", h.Admin.CreateBackup)
				r.Post("/restore", h.Admin.Restore)
				r.Post("/restore-latest", h.Admin.RestoreLatest)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	return r
}
