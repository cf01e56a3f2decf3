// Package main is the entrypoint for the DinElPortal tracking API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kaancat/elportal-forside-design-sub009/internal/analytics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/config"
	"github.com/kaancat/elportal-forside-design-sub009/internal/eloverblik"
	"github.com/kaancat/elportal-forside-design-sub009/internal/handler"
	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/metrics"
	"github.com/kaancat/elportal-forside-design-sub009/internal/middleware"
	"github.com/kaancat/elportal-forside-design-sub009/internal/production"
	"github.com/kaancat/elportal-forside-design-sub009/internal/repository"
	"github.com/kaancat/elportal-forside-design-sub009/internal/server"
	"github.com/kaancat/elportal-forside-design-sub009/internal/tracking"
	"github.com/kaancat/elportal-forside-design-sub009/internal/upstream"
)

const badgerGCInterval = 10 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dotenv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	if dotenv {
		logger.Debug("loaded .env file")
	}

	prom := metrics.NewPrometheus()

	srv, err := build(ctx, cfg, prom, logger)
	if err != nil {
		logger.Error("startup failed", "error", sanitizeError(err, cfg.RedisURL, cfg.DatabaseURL))
		os.Exit(1)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"kv_backend", cfg.KVBackend,
		"archive", cfg.ArchiveConfigured(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// handlers groups everything the router mounts.
type handlers struct {
	base        *handler.Handler
	health      *handler.HealthHandler
	click       *handler.ClickHandler
	pixel       *handler.PixelHandler
	dashboard   *handler.DashboardHandler
	production  *handler.ProductionHandler
	consumption *handler.ConsumptionHandler
	price       *handler.PriceHandler
}

// build wires stores, services and handlers and returns a server whose
// shutdown hooks release them.
func build(ctx context.Context, cfg *config.Config, prom *metrics.Prometheus, logger *slog.Logger) (*server.Server, error) {
	var hooks []namedHook

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	hooks = append(hooks, namedHook{"kv", func(context.Context) error { return store.Close() }})

	if b, ok := store.(*kv.Badger); ok && cfg.BadgerDir != "" {
		go runBadgerGC(ctx, b, logger)
	}

	// Untyped nils keep the optional interfaces comparable to nil.
	var archive tracking.ArchiveSink
	var db handler.HealthChecker
	if cfg.ArchiveConfigured() {
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to archive database",
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, err
		}
		hooks = append(hooks, namedHook{"postgres", func(context.Context) error { repo.Close(); return nil }})
		db = repo

		client := store.(*kv.Redis).Client()
		archive = analytics.NewPublisher(client, logger, prom)

		worker := analytics.NewWorker(client, repository.NewClickArchive(repo), logger, analytics.NewConsumerID(), prom)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("archive worker stopped", "error", err)
			}
		}()
		hooks = append(hooks, namedHook{"archive-worker", worker.Shutdown})
		logger.Info("click archive enabled")
	} else if cfg.ArchiveEnabled {
		logger.Warn("click archive requested but requires the redis backend and DATABASE_URL")
	}

	clicks := tracking.NewClickService(store, archive, logger)
	limiter := tracking.NewRateLimiter(store, cfg.ClickRateLimit, cfg.ClickRateWindow)

	productionCaller := upstream.NewCaller(production.ServiceName, logger, prom)
	productionCache := production.NewCache(store,
		production.NewClient(cfg.ProductionAPIURL, productionCaller, logger),
		cfg.ProductionCacheTTL, logger, prom)

	eloverblikCaller := upstream.NewCaller(eloverblik.ServiceName, logger, prom)
	eloverblikCaller.Retry = upstream.NoRetry()
	eloverblikClient := eloverblik.NewClient(cfg.EloverblikAPIURL, cfg.EloverblikThirdPartyRefresh, eloverblikCaller, store, logger)

	h := handlers{
		base:        handler.New(cfg.SiteURL),
		health:      handler.NewHealthHandler(store, db),
		click:       handler.NewClickHandler(clicks, limiter, prom, logger),
		pixel:       handler.NewPixelHandler(tracking.NewPixelRecorder(store, logger, prom), prom, logger),
		dashboard:   handler.NewDashboardHandler(tracking.NewDashboard(store, logger), logger),
		production:  handler.NewProductionHandler(productionCache, logger),
		consumption: handler.NewConsumptionHandler(eloverblikClient, logger),
		price:       handler.NewPriceHandler(),
	}

	r := setupRouter(h, prom, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, hook := range hooks {
		srv.OnShutdown(hook.name, hook.fn)
	}
	return srv, nil
}

type namedHook struct {
	name string
	fn   server.ShutdownFunc
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	if cfg.KVBackend == config.BackendBadger {
		store, err := kv.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		logger.Info("opened badger store", "dir", cfg.BadgerDir, "in_memory", cfg.BadgerDir == "")
		return store, nil
	}

	store, err := kv.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis",
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return nil, err
	}
	logger.Info("connected to Redis")
	return store, nil
}

func runBadgerGC(ctx context.Context, b *kv.Badger, logger *slog.Logger) {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.RunGC(); err != nil {
				logger.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "dinelportal-tracking", "env", cfg.AppEnv)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h handlers, prom *metrics.Prometheus, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.IsDevelopment()))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Method("GET", "/metrics", prom.Handler())
	r.Get("/", h.base.Index)

	r.Route("/api", func(r chi.Router) {
		// The click handler answers OPTIONS and 405 itself.
		r.With(middleware.ClickCORS(), middleware.MaxBodySize(cfg.MaxRequestBodySize)).
			Handle("/track-click", h.click)

		r.Get("/tracking/pixel", h.pixel.Pixel)
		r.Get("/monthly-production", h.production.Get)
		r.Get("/price-calculation", h.price.Calculate)

		r.With(middleware.AdminAuth(cfg.AdminSecret, logger)).
			Get("/admin/dashboard", h.dashboard.Get)

		r.Route("/eloverblik", func(r chi.Router) {
			r.Use(middleware.ProxyCORS())
			r.Use(middleware.Throttle(cfg.ProxyRateLimit, time.Minute, logger))
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

			r.Post("/get-consumption", h.consumption.Customer)
			r.Post("/thirdparty/get-customer-consumption", h.consumption.ThirdParty)
		})
	})

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
