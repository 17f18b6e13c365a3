// Command server runs the network impact control plane.
//
// # Usage
//
//	server --towers data/towers.json --intel-url http://intel:8000 --port 8080
//
// # Configuration
//
// The server can be configured via:
// - Command-line flags
// - Environment variables (NETIMPACT_*)
//
// Postgres and Redis are optional. Without a database the tower catalog is
// served from the --towers file; without Redis analyses are not cached.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/analysis"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/api"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/cache"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/kpi"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/metrics"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/secrets"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/store"
	"github.com/florykhan/TelusGuardAI/control-plane/internal/worker"
	"github.com/florykhan/TelusGuardAI/db/migrate"
	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

const serverVersion = "v0.3.0"

func main() {
	var (
		port      = flag.Int("port", 8080, "HTTP server port")
		dbURL     = flag.String("database", "", "Database URL (postgres://...), optional")
		redisURL  = flag.String("redis", "", "Redis URL for the analysis cache (redis://...), optional")
		towerFile = flag.String("towers", "", "Tower reference file (JSON)")
		seed      = flag.Bool("seed-towers", false, "Upsert the --towers file into the database at startup")
		intelURL  = flag.String("intel-url", "", "Intelligence service base URL")
		kpiSeed   = flag.Int64("kpi-seed", config.KPISeed, "Seed for the KPI simulator")
		debug     = flag.Bool("debug", false, "Enable debug logging")
		version   = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("netimpact-server", serverVersion)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	envDefault(dbURL, "NETIMPACT_DATABASE_URL")
	envDefault(redisURL, "NETIMPACT_REDIS_URL")
	envDefault(towerFile, "NETIMPACT_TOWERS_FILE")
	envDefault(intelURL, "NETIMPACT_INTEL_URL")
	if v := os.Getenv("NETIMPACT_PORT"); v != "" && !flagSet("port") {
		if p, err := strconv.Atoi(v); err == nil {
			*port = p
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tower catalog
	var (
		catalog api.TowerCatalog
		dbProbe metrics.DatabaseProbe
	)
	if *dbURL != "" {
		db, err := store.NewStoreFromURL(ctx, *dbURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
		err = db.Ping(pingCtx)
		pingCancel()
		if err != nil {
			logger.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		if err := migrate.Run(ctx, db.Pool(), logger); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}

		if *seed {
			if *towerFile == "" {
				logger.Error("--seed-towers requires --towers")
				os.Exit(1)
			}
			towers, err := spatial.LoadTowers(*towerFile)
			if err != nil {
				logger.Error("failed to load towers", "error", err)
				os.Exit(1)
			}
			n, err := db.SeedTowers(ctx, towers)
			if err != nil {
				logger.Error("failed to seed towers", "error", err)
				os.Exit(1)
			}
			logger.Info("towers seeded", "count", n, "file", *towerFile)
		}
		catalog = db
		dbProbe = db
	} else {
		if *towerFile == "" {
			logger.Warn("no database or tower file configured, tower catalog is empty")
			catalog = store.NewMemoryCatalog(nil)
		} else {
			towers, err := spatial.LoadTowers(*towerFile)
			if err != nil {
				logger.Error("failed to load towers", "error", err)
				os.Exit(1)
			}
			catalog = store.NewMemoryCatalog(towers)
			logger.Info("towers loaded", "count", len(towers), "file", *towerFile)
		}
	}

	// Analysis cache
	var (
		reportCache *cache.Cache
		cacheProbe  metrics.CacheProbe
		cacheAdmin  api.AnalysisCache
		reports     analysis.ReportCache
	)
	if *redisURL != "" {
		c, err := cache.New(*redisURL, config.CacheTTLAnalysis, logger)
		if err != nil {
			// The cache is an optimisation; run without it.
			logger.Warn("analysis cache unavailable", "error", err)
		} else {
			reportCache = c
			defer reportCache.Close()
			cacheProbe, cacheAdmin, reports = c, c, c
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Analysis service
	var analyzer api.Analyzer
	if *intelURL != "" {
		tokens, err := secrets.NewTokenSource(secrets.ConfigFromEnv(), logger)
		if err != nil {
			logger.Error("failed to initialize token source", "error", err)
			os.Exit(1)
		}
		intel, err := analysis.NewIntelClient(analysis.IntelConfig{
			BaseURL: *intelURL,
			Tokens:  tokens,
		}, logger)
		if err != nil {
			logger.Error("failed to create intelligence client", "error", err)
			os.Exit(1)
		}
		svc, err := analysis.NewService(analysis.Config{
			Intel:    intel,
			Cache:    reports,
			Observer: m,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to create analysis service", "error", err)
			os.Exit(1)
		}
		analyzer = svc
	} else {
		logger.Warn("no intelligence service configured, analysis endpoint disabled")
	}

	// KPI simulation
	incidents := kpi.NewIncidents(nil, logger)
	sim := kpi.NewSimulator(kpi.SimConfig{
		Seed:      *kpiSeed,
		Incidents: incidents,
		Logger:    logger,
	})

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version: serverVersion,
		Config: types.HealthConfig{
			CacheTTLSeconds:   int(config.CacheTTLAnalysis.Seconds()),
			MaxAreasReturned:  config.DefaultMaxAreas,
			MinConfidence:     config.DefaultMinConfidence,
			KPIUpdateInterval: config.KPIUpdateInterval.Seconds(),
			KPISmoothing:      config.KPISmoothing,
		},
		Database: dbProbe,
		Cache:    cacheProbe,
		Towers:   catalog,
	})

	maintCfg := worker.DefaultMaintenanceConfig()
	maintCfg.Incidents = incidents
	maintCfg.KPIs = sim
	maintCfg.Gauges = m
	if reportCache != nil {
		maintCfg.Cache = reportCache
	}
	maintenance := worker.NewMaintenanceWorker(maintCfg, logger)
	maintenance.Start(context.Background())
	defer maintenance.Stop()

	apiServer := api.NewServer(api.Config{
		Towers:    catalog,
		KPIs:      sim,
		Incidents: incidents,
		Analyzer:  analyzer,
		Cache:     cacheAdmin,
		Health:    collector,
		Metrics:   m,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: apiServer,
		// Analyses can take up to AnalysisTimeout; websocket streams clear
		// these deadlines on upgrade.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.AnalysisTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			"port", *port,
			"database", *dbURL != "",
			"cache", reportCache != nil,
			"analysis", analyzer != nil)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// envDefault fills an unset string flag from the environment.
func envDefault(p *string, key string) {
	if *p == "" {
		*p = os.Getenv(key)
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
