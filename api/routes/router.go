package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetrackhq/safetrack-backend/api/controllers"
	"github.com/safetrackhq/safetrack-backend/api/middleware"
	"github.com/safetrackhq/safetrack-backend/internal/areas"
	"github.com/safetrackhq/safetrack-backend/internal/auth"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/internal/notifications"
	"github.com/safetrackhq/safetrack-backend/internal/users"
	"github.com/safetrackhq/safetrack-backend/pkg/auth/session"
	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/metrics"
	"github.com/safetrackhq/safetrack-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	RedisPinger    redis.Pinger
	Sessions       session.AccessSessionChecker
	Users          middleware.UserLoader
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth          auth.Service
	Findings      findings.Service
	Areas         areas.Service
	UserAdmin     users.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", controllers.AuthLogin(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, deps.Users, logg))

			r.Get("/auth/me", controllers.AuthMe(deps.Auth, logg))
			r.Post("/auth/logout", controllers.AuthLogout(deps.Auth, logg))

			r.Route("/findings", func(r chi.Router) {
				r.Get("/", controllers.FindingsList(deps.Findings, logg))
				r.Post("/", controllers.FindingCreate(deps.Findings, logg))
				r.Post("/summary", controllers.FindingsSummary(deps.Findings, logg))
				r.Route("/{findingId}", func(r chi.Router) {
					r.Get("/", controllers.FindingDetail(deps.Findings, logg))
					r.Patch("/status", controllers.FindingTransition(deps.Findings, logg))
					r.Patch("/assign", controllers.FindingAssign(deps.Findings, logg))
					r.Post("/photos", controllers.FindingPhotoAppend(deps.Findings, logg))
				})
			})

			r.Route("/areas", func(r chi.Router) {
				r.Get("/", controllers.AreasList(deps.Areas, logg))
				r.Get("/tree", controllers.AreasTree(deps.Areas, logg))
				r.Get("/{areaId}", controllers.AreaDetail(deps.Areas, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSuperAdmin(logg))
					r.Post("/", controllers.AreaCreate(deps.Areas, logg))
					r.Patch("/{areaId}", controllers.AreaUpdate(deps.Areas, logg))
					r.Delete("/{areaId}", controllers.AreaDelete(deps.Areas, logg))
				})
			})

			r.Route("/admin/users", func(r chi.Router) {
				r.With(middleware.RequireElevated(logg)).Get("/", controllers.AdminUsersList(deps.UserAdmin, logg))
				r.With(middleware.RequireElevated(logg)).Get("/{userId}", controllers.AdminUserGet(deps.UserAdmin, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSuperAdmin(logg))
					r.Post("/", controllers.AdminUserCreate(deps.UserAdmin, logg))
					r.Patch("/{userId}", controllers.AdminUserUpdate(deps.UserAdmin, logg))
					r.Post("/{userId}/activate", controllers.AdminUserActivate(deps.UserAdmin, logg))
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/settings", controllers.NotificationSettingsGet(deps.Notifications, logg))
				r.Patch("/settings", controllers.NotificationSettingsUpdate(deps.Notifications, logg))
				r.Post("/test", controllers.NotificationTest(deps.Notifications, logg))
			})
		})
	})

	return r
}
