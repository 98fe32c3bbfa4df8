package rest

import (
	"net/http"
	"time"

	"killrvideo/application/commands/bus"
	querybus "killrvideo/application/queries/bus"
	"killrvideo/infrastructure/config"
	"killrvideo/interfaces/http/rest/handlers"
	"killrvideo/interfaces/http/rest/middleware"
	"killrvideo/pkg/auth"
	"killrvideo/pkg/common"
	"killrvideo/pkg/errors"
	"killrvideo/pkg/observability"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const tracingSegment = "killrvideo-api"

// ReadinessCheck reports whether the store can serve requests
type ReadinessCheck func() error

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	tokens     *auth.TokenManager
	limiter    auth.RateLimiter
	metrics    *observability.Collector
	gatherer   prometheus.Gatherer
	ready      ReadinessCheck
	config     *config.Config
	logger     *zap.Logger
}

// RouterOptions carries the optional collaborators of the router
type RouterOptions struct {
	Tokens   *auth.TokenManager
	Limiter  auth.RateLimiter
	Metrics  *observability.Collector
	Gatherer prometheus.Gatherer
	Ready    ReadinessCheck
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *config.Config,
	opts RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		tokens:     opts.Tokens,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		gatherer:   opts.Gatherer,
		ready:      opts.Ready,
		config:     cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := errors.NewErrorHandler(rt.logger, rt.config.IsDevelopment())

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(chimiddleware.Timeout(rt.config.WriteTimeout + 5*time.Second))
	// Lambda requests already carry a facade segment
	if rt.config.EnableTracing && !rt.config.IsLambda {
		namer := xray.NewFixedSegmentNamer(tracingSegment)
		router.Use(func(next http.Handler) http.Handler {
			return xray.Handler(namer, next)
		})
	}

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.killrvideo.com"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	deps := handlers.Deps{
		CommandBus:   rt.commandBus,
		QueryBus:     rt.queryBus,
		ErrorHandler: errorHandler,
		Logger:       rt.logger,
	}
	users := handlers.NewUserHandler(deps, rt.tokens)
	videos := handlers.NewVideoHandler(deps)
	comments := handlers.NewCommentHandler(deps)
	ratings := handlers.NewRatingHandler(deps)
	playback := handlers.NewPlaybackHandler(deps)
	uploads := handlers.NewUploadHandler(deps)

	authenticate := middleware.Authenticate(rt.tokens, errorHandler, rt.logger)
	rateLimit := middleware.RateLimit(rt.limiter, errorHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.With(rateLimit).Post("/users", users.CreateUser)
			r.With(rateLimit).Post("/sessions", users.CreateSession)

			r.Get("/users/{userID}", users.GetUser)
			r.Get("/users/{userID}/videos", users.ListUserVideos)
			r.Get("/users/{userID}/comments", comments.UserComments)

			r.Get("/videos/latest", videos.LatestVideos)
			r.Get("/videos/{videoID}", videos.GetVideo)
			r.Get("/videos/{videoID}/comments", comments.VideoComments)

			r.Get("/tags", videos.SuggestTags)
			r.Get("/tags/{tag}/videos", videos.VideosByTag)

			r.Get("/uploads", uploads.GetUpload)
			r.Get("/uploads/{videoID}", uploads.GetUpload)
			r.Get("/jobs/{jobID}", uploads.JobStatus)
		})

		// Routes that act for a user
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(rateLimit)

			r.Post("/videos", videos.AddVideo)
			r.Post("/videos/{videoID}/comments", comments.AddComment)
			r.Get("/videos/{videoID}/rating", ratings.GetRating)
			r.Put("/videos/{videoID}/rating", ratings.RateVideo)
			r.Post("/videos/{videoID}/playback", playback.RecordEvent)
			r.Get("/videos/{videoID}/playback", playback.History)
			r.Post("/uploads", uploads.RegisterUpload)
			r.Post("/jobs/{jobID}/transitions", uploads.AdvanceJob)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether the store is reachable
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.ready != nil {
		if err := rt.ready(); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
