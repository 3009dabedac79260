package api

import (
	"net/http"

	"github.com/Rrens/formvault/internal/api/handler"
	customMiddleware "github.com/Rrens/formvault/internal/api/middleware"
	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/metrics"
	"github.com/Rrens/formvault/internal/repository"
	"github.com/Rrens/formvault/internal/repository/redis"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/Rrens/formvault/internal/security"
	"github.com/Rrens/formvault/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures the HTTP router. redisClient and m may
// be nil.
func NewRouter(cfg *config.Config, store repository.Store, redisClient *redis.Client, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}
	r.Use(m.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Snapshot cache, only when configured and Redis is up
	var cache domain.VersionCache
	var versionCache *redis.VersionCache
	if cfg.Cache.Enabled && redisClient != nil {
		versionCache = redis.NewVersionCache(redisClient, cfg.Cache.VersionTTL)
		cache = versionCache
	}

	mode, err := schema.ParseMode(cfg.Validation.UnknownFields)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to lenient validation")
	}

	// Initialize services
	tenants := service.NewTenantRegistry(store.Tenants(), cfg.Tenants.AutoRegister)
	versions := service.NewVersionManager(tenants, store.Definitions(), cache, m)
	records := service.NewRecordBinder(tenants, versions, store.Records(), schema.NewValidator(mode), m)

	// Initialize handlers
	tenantHandler := handler.NewTenantHandler(tenants)
	definitionHandler := handler.NewDefinitionHandler(versions)
	recordHandler := handler.NewRecordHandler(records)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	readiness := map[string]handler.Pinger{"storage": store}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	if m != nil && cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(readiness))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if cfg.Security.RateLimit.Enabled && redisClient != nil {
				rateLimiter := redis.NewRateLimiter(
					redisClient,
					cfg.Security.RateLimit.RequestsPerMinute,
					cfg.Security.RateLimit.Burst,
				)
				r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
			}

			// Tenant registry
			r.Route("/admin", func(r chi.Router) {
				r.Use(customMiddleware.RequireAdmin)
				r.Get("/tenants", tenantHandler.List)
				r.Post("/tenants", tenantHandler.Register)
				if versionCache != nil {
					r.Post("/cache/flush", handler.FlushCache(versionCache))
				}
			})
			r.Get("/tenant", tenantHandler.Current)

			// Definition routes
			r.Route("/definitions", func(r chi.Router) {
				r.Get("/", definitionHandler.List)
				r.Post("/", definitionHandler.Create)

				r.Route("/{definitionID}", func(r chi.Router) {
					r.Get("/", definitionHandler.Get)
					r.Delete("/", definitionHandler.Delete)

					// Version routes
					r.Route("/versions", func(r chi.Router) {
						r.Get("/", definitionHandler.ListVersions)
						r.Post("/", definitionHandler.Publish)
						r.Get("/active", definitionHandler.GetActive)
						r.Get("/{number}", definitionHandler.GetVersion)
					})

					r.Post("/validate", recordHandler.Validate)
					r.Get("/records", recordHandler.List)
					r.Post("/records", recordHandler.Create)
				})
			})

			// Record routes
			r.Route("/records/{recordID}", func(r chi.Router) {
				r.Get("/", recordHandler.Get)
				r.Delete("/", recordHandler.Delete)
				r.Put("/values", recordHandler.UpdateValues)
				r.Post("/rebind", recordHandler.Rebind)
			})
		})
	})

	return r
}
