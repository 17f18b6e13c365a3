// Command dashboard runs the overlay and live-KPI engine against a control
// plane, headless. The current view is served as JSON for a map front end.
//
// # Usage
//
//	dashboard --control-plane http://localhost:8080 --listen :9102
//
// # Configuration
//
// Configuration can be provided via:
// - Command-line flags
// - Environment variables (NETIMPACT_*)
// - Config file (--config)
//
// # Examples
//
// Run an analysis on startup and keep KPIs in sync:
//
//	dashboard --config /etc/netimpact/dashboard.yaml \
//	          --question "What events are affecting downtown Vancouver tonight?"
//
// Only show LTE and NR towers:
//
//	NETIMPACT_TOWERS_RADIOS=LTE,NR dashboard
package main

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/florykhan/TelusGuardAI/dashboard"
	"github.com/florykhan/TelusGuardAI/dashboard/internal/client"
	"github.com/florykhan/TelusGuardAI/dashboard/internal/config"
	"github.com/florykhan/TelusGuardAI/dashboard/internal/kpisync"
	"github.com/florykhan/TelusGuardAI/pkg/spatial"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to config file")
		controlPlane = flag.String("control-plane", "", "Control plane URL")
		token        = flag.String("token", "", "Authentication token")
		towersFile   = flag.String("towers", "", "Tower reference JSON file (default: fetch from control plane)")
		radios       = flag.String("radios", "", "Displayed radio types, comma separated")
		listen       = flag.String("listen", "", "Address for /view and /metrics")
		question     = flag.String("question", "", "Run this analysis on startup")
		debug        = flag.Bool("debug", false, "Enable debug logging")
		version      = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("netimpact-dashboard %s\n", dashboard.Version)
		os.Exit(0)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Load configuration
	cfg := config.DefaultConfig()
	if *configFile != "" {
		fileCfg, err := config.LoadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	cfg.ApplyEnvOverrides()

	if *controlPlane != "" {
		cfg.ControlPlane.URL = *controlPlane
	}
	if *token != "" {
		cfg.ControlPlane.Token = *token
	}
	if *towersFile != "" {
		cfg.Towers.File = *towersFile
	}
	if *radios != "" {
		cfg.Towers.Radios = config.SplitList(*radios)
	}
	if *listen != "" {
		cfg.Metrics.Listen = *listen
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	cp := client.NewClient(client.Config{
		BaseURL:            cfg.ControlPlane.URL,
		AuthToken:          cfg.ControlPlane.Token,
		Timeout:            cfg.ControlPlane.RequestTimeout,
		InsecureSkipVerify: cfg.ControlPlane.InsecureSkipVerify,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	towers, err := loadTowers(ctx, cfg, cp)
	if err != nil {
		logger.Error("failed to load towers", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics, err := kpisync.NewMetrics(reg)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	engine, err := dashboard.New(dashboard.Config{
		Towers:   towers,
		Radios:   cfg.Towers.Radios,
		Fetcher:  cp,
		Analyzer: cp,
		Sync: kpisync.Config{
			Throttle:     cfg.Sync.Throttle,
			MaxBatch:     cfg.Sync.MaxBatch,
			PollInterval: cfg.Sync.PollInterval,
			Options:      types.KpiOptions{Mode: cfg.Sync.Mode, TickMs: cfg.Sync.TickMs},
		},
		Viewport: cfg.Viewport,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if *question != "" {
		runAnalysis(ctx, engine, *question, logger)
	}

	var server *http.Server
	if cfg.Metrics.Listen != "" {
		server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           viewHandler(engine, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("serving view", "addr", cfg.Metrics.Listen)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("view server error", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting dashboard engine",
		"control_plane", cfg.ControlPlane.URL,
		"towers", len(towers))

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("engine exited with error", "error", err)
		os.Exit(1)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}
	logger.Info("dashboard shutdown complete")
}

func loadTowers(ctx context.Context, cfg *config.Config, cp *client.Client) ([]types.Tower, error) {
	if cfg.Towers.File != "" {
		return spatial.LoadTowers(cfg.Towers.File)
	}
	// Each page is bounded by the client's request timeout.
	return cp.GetAllTowers(ctx, client.TowerQuery{})
}

// runAnalysis applies a startup analysis. Failures are reported but do not
// stop the engine.
func runAnalysis(ctx context.Context, engine *dashboard.Engine, question string, logger *slog.Logger) {
	areas, err := engine.Analyze(ctx, types.AnalysisRequest{Question: question})
	switch {
	case errors.Is(err, client.ErrBackendUnreachable):
		logger.Error("analysis failed: control plane is unreachable", "error", err)
		return
	case err != nil:
		logger.Error("analysis failed", "error", err)
		return
	}
	for _, a := range areas {
		logger.Info("impact area",
			"id", a.ID,
			"severity", a.SeverityLabel,
			"towers", a.TowerCount)
	}
}

// viewHandler serves the engine view and accepts map interactions.
//
//	GET  /view
//	POST /viewport        {"north":..,"south":..,"east":..,"west":..}
//	POST /select/tower?id=
//	POST /select/area?id=
//	POST /select/clear
//	POST /click?lat=&lon=
//	GET  /metrics
func viewHandler(engine *dashboard.Engine, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /view", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.View())
	})
	mux.HandleFunc("POST /viewport", func(w http.ResponseWriter, r *http.Request) {
		var vp types.Viewport
		if err := json.NewDecoder(r.Body).Decode(&vp); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid viewport"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"outcome": string(engine.SetViewport(vp))})
	})
	mux.HandleFunc("POST /select/tower", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.SelectTower(r.URL.Query().Get("id")))
	})
	mux.HandleFunc("POST /select/area", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.SelectArea(r.URL.Query().Get("id")))
	})
	mux.HandleFunc("POST /select/clear", func(w http.ResponseWriter, r *http.Request) {
		engine.ClearSelection()
		writeJSON(w, http.StatusOK, types.NoSelection)
	})
	mux.HandleFunc("POST /click", func(w http.ResponseWriter, r *http.Request) {
		lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
		if err1 != nil || err2 != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
			return
		}
		sel, hit := engine.Click(lat, lon)
		writeJSON(w, http.StatusOK, map[string]any{"selection": sel, "hit": hit})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
