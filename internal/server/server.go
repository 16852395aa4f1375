package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/api"
	"github.com/BhargavRaval15/url-shortner/internal/config"
	"github.com/BhargavRaval15/url-shortner/internal/middleware"
	"github.com/BhargavRaval15/url-shortner/internal/observability"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
	"github.com/BhargavRaval15/url-shortner/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// redisPinger adapts *redis.Client to api.Pinger.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Deps are the process-wide resources the router is built from. Cache,
// Recorder, Metrics and Registry are optional.
type Deps struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Recorder service.ClickRecorder
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// App is the wired HTTP application
type App struct {
	Router *gin.Engine
	Links  *service.LinkService
	Auth   *service.AuthService
}

// NewApp wires repositories, services and handlers onto a Gin engine.
// ctx bounds background work such as rate limiter housekeeping.
func NewApp(ctx context.Context, deps Deps) *App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	links := repository.NewCachedLinkRepository(repository.NewLinkRepository(deps.DB), deps.Cache, cfg.Cache.TTL, logger)
	clicks := repository.NewClickRepository(deps.DB)
	users := repository.NewUserRepository(deps.DB)

	linkService := service.NewLinkService(
		links,
		clicks,
		deps.Recorder,
		service.NewRandomCodeGenerator(cfg.App.ShortCodeLen),
		service.LinkOptions{
			BaseURL:          cfg.App.BaseURL,
			ShortCodeRetries: cfg.App.ShortCodeRetries,
			MinAliasLen:      cfg.App.MinAliasLen,
			MaxAliasLen:      cfg.App.MaxAliasLen,
			DefaultPageSize:  cfg.App.DefaultPageSize,
			MaxPageSize:      cfg.App.MaxPageSize,
		},
		logger,
		deps.Metrics,
	)
	authService := service.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	var cache api.Pinger
	if deps.Cache != nil {
		cache = &redisPinger{client: deps.Cache}
	}
	handler := api.NewHandler(linkService, authService, deps.DB, cache, logger, cfg.App.FrontendURL)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.App.ServiceName),
		middleware.Logging(logger, "/health", "/metrics"),
		cors.New(corsConfig(cfg)),
	)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	handler.RegisterRoutes(r, api.Middlewares{
		Auth:          middleware.RequireAuth(authService, logger),
		AuthLimit:     middleware.NewRateLimiter(ctx, cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst).Middleware(),
		RedirectLimit: middleware.NewRateLimiter(ctx, cfg.RateLimit.RedirectRPS, cfg.RateLimit.RedirectBurst).Middleware(),
	})

	return &App{Router: r, Links: linkService, Auth: authService}
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.App.FrontendURL != "" {
		c.AllowOrigins = []string{cfg.App.FrontendURL}
	} else {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	}
	return c
}

// NewServer wraps handler in an HTTP server with the configured timeouts
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
