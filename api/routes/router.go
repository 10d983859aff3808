package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fieldops-backend/api/controllers"
	"github.com/angelmondragon/fieldops-backend/api/middleware"
	"github.com/angelmondragon/fieldops-backend/internal/assignments"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/config"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/redis"
)

// Deps groups what the HTTP surface needs. Gatherer defaults to the
// Prometheus default registry.
type Deps struct {
	DB          db.Pinger
	Redis       *redis.Client
	Assignments assignments.Service
	Ledger      worklog.Service
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	ready := map[string]controllers.Pinger{}
	if deps.DB != nil {
		ready["db"] = deps.DB
	}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Inline so the full route pattern is known when the rules are matched.
	replay := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		replay = middleware.Idempotency(deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", controllers.AssignmentDispatch(deps.Assignments, logg))
			r.Route("/{assignmentId}", func(r chi.Router) {
				r.Post("/start", controllers.AssignmentStart(deps.Assignments, logg))
				r.With(replay).Post("/finalize", controllers.AssignmentFinalize(deps.Assignments, logg))
				r.Post("/cancel", controllers.AssignmentCancel(deps.Assignments, logg))
				r.Post("/route", controllers.AssignmentRecalculateRoute(deps.Assignments, logg))
				r.Put("/team", controllers.AssignmentUpdateTeam(deps.Assignments, logg))
				r.Delete("/", controllers.AssignmentDelete(deps.Assignments, logg))
			})
		})

		r.Post("/users/{userId}/totals/recompute", controllers.UserTotalsRecompute(deps.Ledger, logg))
		r.With(replay).Post("/admin/totals/reset", controllers.AdminTotalsReset(deps.Ledger, logg))
	})

	return r
}
