package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ridgeline/intranet/pkg/activity"
	"github.com/ridgeline/intranet/pkg/api"
	"github.com/ridgeline/intranet/pkg/auth"
	"github.com/ridgeline/intranet/pkg/blob"
	"github.com/ridgeline/intranet/pkg/config"
	"github.com/ridgeline/intranet/pkg/middleware"
	"github.com/ridgeline/intranet/pkg/observability"
	"github.com/ridgeline/intranet/pkg/wiki"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "intranet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.ParseLogLevel(), os.Stdout)
	logger.Info("starting intranet wiki service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := wiki.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// OpenTelemetry
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		go collectDBStats(ctx, db, metrics)
	}

	// Activity recorder
	recorder, err := activity.NewRecorder(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create activity recorder: %w", err)
	}
	if metrics != nil {
		recorder.SetMetrics(metrics)
	}

	// Page store with version cache
	store := wiki.NewStore(db, recorder, logger)
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		local, err := wiki.NewLRUVersionCache(cfg.Cache.L1Size)
		if err != nil {
			return err
		}
		if cfg.Cache.RedisAddr != "" {
			shared, err := wiki.NewRedisVersionCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisTTL, logger)
			if err != nil {
				return err
			}
			defer shared.Close()
			redisClient = shared.Client()
			tiered := wiki.NewTieredVersionCache(local, shared)
			if metrics != nil {
				tiered.SetMetrics(metrics)
			}
			store.SetVersionCache(tiered)
			logger.Info("version cache enabled (LRU + Redis)")
		} else {
			if metrics != nil {
				local.SetMetrics(metrics)
			}
			store.SetVersionCache(local)
			logger.Info("version cache enabled (LRU)")
		}
	}

	// Identity
	adminEmails := cfg.Auth.AdminEmails
	if cfg.Auth.AdminListFile != "" {
		adminEmails, err = auth.LoadAdminList(cfg.Auth.AdminListFile)
		if err != nil {
			return err
		}
	}
	authService := auth.NewService(db, adminEmails, logger)
	logger.WithField("admins", len(adminEmails)).Info("admin list loaded")

	// Blob storage
	var blobClient *blob.Client
	if cfg.Blob.Enabled {
		blobLog := logrus.New()
		blobLog.SetFormatter(&logrus.JSONFormatter{})
		blobClient, err = blob.NewClient(cfg.Blob, blobLog)
		if err != nil {
			return fmt.Errorf("failed to create blob client: %w", err)
		}
		logger.WithField("bucket", cfg.Blob.Bucket).Info("blob storage enabled")
	}

	// Activity retention
	retention := activity.NewRetentionJob(recorder, cfg.Activity.RetentionDays, logger)
	if err := retention.Start(cfg.Activity.CleanupSchedule); err != nil {
		return err
	}

	// API server and middleware chain
	server := api.NewServer(store, recorder, blobClient, logger)
	router := server.Router()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))

	if metrics != nil {
		server.SetMetrics(metrics)
		router.Use(mux.MiddlewareFunc(metrics.HTTPMiddleware(routeTemplate)))
	}
	if cfg.Observability.OTelEnabled {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		server.SetOTelMetrics(otelMetrics)
	}

	identity := middleware.NewIdentityMiddleware(authService, logger, false)
	router.Use(identity.Handler)

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "intranet-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server on its own port for probes
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	if cfg.Auth.AdminListFile != "" {
		g.Go(func() error {
			err := auth.WatchAdminList(gctx, cfg.Auth.AdminListFile, authService, logger)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(sctx context.Context) error {
		return healthServer.Shutdown(sctx)
	})
	shutdown.RegisterShutdownFunc(retention.Stop)
	shutdown.RegisterShutdownFunc(func(sctx context.Context) error {
		return observability.ShutdownOTel(sctx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		return err
	}
	return g.Wait()
}

// routeTemplate returns the mux route template for metrics labels, falling
// back to the raw path for unmatched requests.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

// collectDBStats copies connection pool stats into the gauges every 15s.
func collectDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}
