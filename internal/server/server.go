package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/assets"
	"storefront/internal/config"
	"storefront/internal/identity"
	"storefront/internal/metrics"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the long-lived resources the server routes to
type Dependencies struct {
	Stores   *Stores
	Assets   assets.Store
	Redis    *redis.Client
	Registry *prometheus.Registry
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(deps.Registry)

	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.Server.IsProduction()))
	router.Use(metrics.Middleware(collector))
	router.Use(custommiddleware.Authenticate(cfg.JWT.Secret, logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		store := deps.Stores.Health(r.Context())
		if store["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		body := map[string]any{"status": "ok", "store": store}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(r.Context()).Err(); err != nil {
				body["redis"] = "down"
			} else {
				body["redis"] = "up"
			}
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		custommiddleware.RespondWithJSON(w, status, body)
	})
	router.Handle("/metrics", metrics.Handler(deps.Registry))

	if local, ok := deps.Assets.(*assets.LocalStore); ok {
		prefix := uploadsPrefix(cfg.Assets.LocalURL)
		router.Handle(prefix+"/*", http.StripPrefix(prefix, local.Handler()))
	}

	// Initialize services
	uploader := assets.NewUploader(deps.Assets, cfg.Assets.Concurrency, cfg.Assets.UploadTimeout, collector, logger.Named("assets"))
	products := service.NewProductService(deps.Stores.Products, uploader, logger.Named("products"))
	identities := identity.NewService(deps.Stores.Users, collector, logger.Named("identity"))
	gate := service.NewGate(deps.Stores.Users)

	var rateLimit func(http.Handler) http.Handler
	if deps.Redis != nil {
		rateLimit = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit",
		}, logger)
	}

	verifier := custommiddleware.NewWebhookVerifier(cfg.Identity.WebhookSecret, cfg.Identity.WebhookTolerance)

	// Register routes
	transport.NewUserHandler(logger).RegisterRoutes(router, custommiddleware.RequireUser(gate, logger))
	transport.NewProductHandler(products, cfg.Server.MaxUploadMB<<20, logger).
		RegisterRoutes(router, custommiddleware.RequireSeller(gate, logger), rateLimit)
	transport.NewWebhookHandler(identities, deps.Redis, cfg.Identity.DedupeTTL, logger).
		RegisterRoutes(router, custommiddleware.VerifyWebhook(verifier, logger), rateLimit)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	return server
}

// uploadsPrefix is the path component of the public URL for locally stored files
func uploadsPrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || strings.TrimRight(u.Path, "/") == "" {
		return "/uploads"
	}
	return strings.TrimRight(u.Path, "/")
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.deps.Stores != nil {
		if err := s.deps.Stores.Close(ctx); err != nil {
			s.logger.Error("Failed to close store", zap.Error(err))
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
