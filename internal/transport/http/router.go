package http

import (
	"context"
	"net/http"

	"github.com/eduretrieve-api/internal/config"
	"github.com/eduretrieve-api/internal/metrics"
	"github.com/eduretrieve-api/internal/transport/http/handler"
	appmiddleware "github.com/eduretrieve-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
// ctx bounds background work owned by the router, such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if deps.Metrics != nil {
		r.Use(appmiddleware.Metrics(deps.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	signupRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.SignupRateLimit), cfg.SignupRateBurst)

	healthH := handler.NewHealthHandler()
	signupH := handler.NewSignupHandler(deps.Signup)
	accountH := handler.NewAccountHandler(deps.Accounts)
	sessionH := handler.NewSessionHandler(deps.Sessions)

	r.Get("/", healthH.Root)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(signupRL.Limit).Post("/signup/{action}", signupH.Action)
		r.With(signupRL.Limit).Post("/auth/check-user-status", accountH.CheckUserStatus)
		r.With(signupRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)

		if deps.TokenVerifier == nil {
			return
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.TokenVerifier))

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Get("/profile", accountH.GetProfile)
			r.Post("/profile/sync", accountH.SyncProfile)
		})
	})

	return r
}
