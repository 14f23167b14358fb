package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	handlers "github.com/de-tools/msp-atlas/pkg/handlers/reports"
	"github.com/de-tools/msp-atlas/pkg/observability"
	mspmiddleware "github.com/de-tools/msp-atlas/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Reports handlers.Dependencies
	Metrics *observability.Metrics
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// RateLimit is requests per second per client; zero disables it
	RateLimit    float64
	RateBurst    int
	CORSOrigins  []string
	Dependencies Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	h := handlers.NewHandler(config.Dependencies.Reports)
	metrics := config.Dependencies.Metrics

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mspmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	if metrics != nil {
		router.Use(metrics.Middleware)
	}
	if len(config.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: config.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", mspmiddleware.TenantHeader},
			MaxAge:         300,
		}))
	}
	if config.RateLimit > 0 {
		router.Use(mspmiddleware.RateLimit(rate.Limit(config.RateLimit), max(config.RateBurst, 1)))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(mspmiddleware.Tenant)

		r.Get("/metrics", h.ListMetrics)
		r.Get("/metrics/{name}", h.GetMetric)
		r.Post("/widgets/render", h.RenderWidget)

		r.Get("/reports/{type}", h.GetReport)
		r.Get("/dashboard", h.GetDashboard)

		r.Route("/executive", func(r chi.Router) {
			r.Get("/health", h.GetHealthScorecard)
			r.Get("/clients/{clientID}/health", h.GetClientHealth)
			r.Get("/quarterly-review", h.GetQuarterlyReview)
			r.Get("/sla", h.GetSLAReport)
			r.Get("/summary", h.GetExecutiveSummary)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Get("/{scheduleID}", h.GetSchedule)
			r.Post("/{scheduleID}/deactivate", h.DeactivateSchedule)
			r.Post("/{scheduleID}/activate", h.ActivateSchedule)
			r.Post("/{scheduleID}/run", h.RunSchedule)
			r.Get("/{scheduleID}/runs", h.ListRuns)
		})
	})

	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: config.ShutdownTimeout,
	}
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(shutdownCtx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
