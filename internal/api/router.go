package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fuomag9/kabomba-status/internal/config"
	"github.com/fuomag9/kabomba-status/internal/live"
	"github.com/fuomag9/kabomba-status/internal/store"
	"github.com/fuomag9/kabomba-status/internal/uptime"
)

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Checker  Checker
	Guard    URLValidator
	Settings SettingsCache
	Mailer   TestMailer
	Hub      *live.Hub
	Uptime   *uptime.Calculator
	Registry *prometheus.Registry
	Limiter  *RateLimiter

	// AuthLimiter guards the credential endpoints; nil means 5 per minute
	AuthLimiter *RateLimiter
}

// NewRouter creates a new HTTP router
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware(cfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limiter := d.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}
	authLimiter := d.AuthLimiter
	if authLimiter == nil {
		// 5 attempts per minute per IP for credential endpoints
		authLimiter = NewRateLimiter(rate.Every(12*time.Second), 5)
	}

	validator := ServiceValidator{Guard: d.Guard, MinInterval: cfg.Checker.MinInterval}
	authenticated := AuthMiddleware(cfg.JWTSecret, d.Store)

	r.Route("/api", func(r chi.Router) {
		// Streaming endpoints stay outside the compressing, rate limited group
		r.Get("/live", d.Hub.ServeSSE(cfg.Live.KeepAlive))
		r.Get("/live/ws", d.Hub.ServeWS(TokenValidator(cfg.JWTSecret), cfg.CORSOrigins))

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(limiter, "Rate limit exceeded. Please try again later."))
			r.Use(middleware.Compress(5))

			r.Route("/auth", func(r chi.Router) {
				r.Get("/setup", HandleSetupStatus(d.Store))
				r.Group(func(r chi.Router) {
					r.Use(RateLimitMiddleware(authLimiter, "Too many attempts. Please try again later."))
					r.Post("/setup", HandleSetup(d.Store, cfg.JWTSecret))
					r.Post("/login", HandleLogin(d.Store, cfg.JWTSecret))
					r.Post("/register", HandleRegister(d.Store, cfg.JWTSecret))
				})
				r.With(authenticated).Get("/me", HandleGetCurrentUser())
			})

			// Public routes
			r.Get("/services/public", HandleListPublicServices(d.Store))
			r.Get("/badge/{id}/status", HandleStatusBadge(d.Store))
			r.Get("/badge/{id}/uptime", HandleUptimeBadge(d.Store, d.Uptime))
			r.Get("/events", HandleListEvents(d.Store))
			r.Get("/events/active", HandleListActiveEvents(d.Store))
			r.Get("/events/{id}", HandleGetEvent(d.Store))
			r.With(RateLimitMiddleware(authLimiter, "Too many attempts. Please try again later.")).
				Post("/invites/validate", HandleValidateInvite(d.Store))

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(authenticated)

				r.Get("/services", HandleListServices(d.Store))
				r.Post("/services", HandleCreateService(d.Store, d.Checker, validator))
				r.Get("/services/{id}", HandleGetService(d.Store))
				r.Put("/services/{id}", HandleUpdateService(d.Store, d.Checker, validator))
				r.Delete("/services/{id}", HandleDeleteService(d.Store, d.Checker))

				r.Get("/groups", HandleListGroups(d.Store))

				r.Get("/checks/service/{id}", HandleGetChecks(d.Store))
				r.Post("/checks/service/{id}", HandleRunCheck(d.Checker))
				r.Get("/checks/service/{id}/latest", HandleGetLatestCheck(d.Store))
				r.Get("/checks/service/{id}/stats", HandleGetStats(d.Store))
				r.Get("/checks/service/{id}/uptime", HandleGetUptime(d.Uptime))
				r.Post("/checks/batch", HandleLatestBatch(d.Store))
				r.Post("/checks/stats/batch", HandleStatsBatch(d.Store))

				r.Get("/settings", HandleGetSettings(d.Store))

				r.Get("/api-keys", HandleGetAPIKeys(d.Store))
				r.Post("/api-keys", HandleCreateAPIKey(d.Store))
				r.Delete("/api-keys/{id}", HandleDeleteAPIKey(d.Store))

				r.Get("/users/{id}", HandleGetUser(d.Store))
				r.Put("/users/{id}/password", HandleChangePassword(d.Store))

				r.Get("/export/group/{name}", HandleExportGroup(d.Store))
				r.Get("/export/service/{id}", HandleExportService(d.Store))
				r.Post("/import", HandleImport(d.Store, d.Checker, validator))

				// Admin routes
				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)

					r.Post("/groups", HandleUpsertGroup(d.Store))

					r.Post("/checker/start/{id}", HandleStartChecker(d.Store, d.Checker))
					r.Post("/checker/stop/{id}", HandleStopChecker(d.Store, d.Checker))

					r.Put("/settings", HandleUpdateSettings(d.Store, d.Settings))
					r.Post("/settings/test-email", HandleTestEmail(d.Mailer))

					r.Get("/webhooks", HandleListWebhooks(d.Store))
					r.Post("/webhooks", HandleCreateWebhook(d.Store, d.Guard))
					r.Delete("/webhooks/{id}", HandleDeleteWebhook(d.Store))

					r.Get("/audit", HandleListAudit(d.Store))

					r.Get("/users", HandleListUsers(d.Store))
					r.Put("/users/{id}/role", HandleUpdateUserRole(d.Store))
					r.Delete("/users/{id}", HandleDeleteUser(d.Store))

					r.Get("/invites", HandleListInvites(d.Store))
					r.Post("/invites", HandleCreateInvite(d.Store))
					r.Delete("/invites/{id}", HandleDeleteInvite(d.Store))

					r.Post("/events", HandleCreateEvent(d.Store))
					r.Put("/events/{id}", HandleUpdateEvent(d.Store))
					r.Post("/events/{id}/resolve", HandleResolveEvent(d.Store))
					r.Delete("/events/{id}", HandleDeleteEvent(d.Store))

					r.Get("/export", HandleExportAll(d.Store))
				})
			})
		})
	})

	// Prometheus metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	r.Get("/health", HandleHealth(d.Store))

	return r
}

// HandleHealth reports database reachability
func HandleHealth(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := st.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
