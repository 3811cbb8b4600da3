package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dataprimer/backend/internal/api"
	"github.com/dataprimer/backend/internal/config"
	"github.com/dataprimer/backend/internal/flow"
	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/persist"
	"github.com/dataprimer/backend/internal/rules"
	"github.com/dataprimer/backend/internal/services"
	"github.com/dataprimer/backend/internal/unpivot"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "DataPrimer.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Advanced.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Classification ruleset: built-in default, replaced by a yaml file in
	// the rules directory when one exists.
	registry := rules.NewRegistry(nil)
	rulesPath := filepath.Join(cfg.Storage.RulesDirectory, "classification.yaml")
	if file, err := os.Open(rulesPath); err == nil {
		rs, err := rules.Load(file)
		file.Close()
		if err != nil {
			logger.Warn("ignoring invalid classification ruleset", zap.String("path", rulesPath), zap.Error(err))
		} else {
			registry.Swap(rs)
			logger.Info("classification ruleset loaded", zap.String("path", rulesPath), zap.String("version", rs.Version))
		}
	}

	// Flow snapshots: local msgpack files plus an in-memory shared copy,
	// fanned out through one debounced write path.
	localStore, err := persist.NewLocalStore(cfg.GetSnapshotsDir())
	if err != nil {
		fmt.Printf("Failed to initialize snapshot storage: %v\n", err)
		os.Exit(1)
	}
	sharedStore := persist.NewSharedStore()
	debounce := time.Duration(cfg.Flow.SaveDebounceMs) * time.Millisecond
	syncer := persist.NewSyncer(persist.FlushDebounced, debounce, logger, localStore, sharedStore)
	defer syncer.Close()

	// Flow manager with persistence hooked to every mutation
	flowMgr := flow.NewManager(registry, logger)
	flowMgr.SetOnChange(func(st *models.FlowState) {
		if err := syncer.Write(st); err != nil {
			logger.Warn("snapshot write failed", zap.String("flowID", st.ID), zap.Error(err))
		}
	})

	// Start background flow cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Flow.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			flowMgr.CleanupOldFlows(time.Duration(cfg.Flow.SessionTimeoutMinutes) * time.Minute)
		}
	}()

	// External service clients
	compute := services.NewClient(services.Config{
		BaseURL:     cfg.Services.ComputeURL,
		Environment: cfg.Services.Environment,
		Project:     cfg.Services.Project,
	}, logger)
	reshape := unpivot.NewClient(cfg.Services.ReshapeURL, logger)

	h := api.NewHandler(cfg, flowMgr, syncer, localStore, compute, reshape, registry, logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/keep-alive") ||
				path == "/api/health" || path == "/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			// uploads and websocket streams run far longer than a request
			return strings.HasSuffix(path, "/files") ||
				strings.HasSuffix(path, "/progress")
		},
		ErrorMessage: "Request timeout - backend took too long",
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{
				"http://localhost:5173", "http://127.0.0.1:5173",
				"http://localhost:3000", "http://127.0.0.1:3000",
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e, h)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Data Primer Backend                             ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Compute:   %-46s║\n", cfg.Services.ComputeURL)
	fmt.Printf("║  Reshape:   %-46s║\n", cfg.Services.ReshapeURL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zapCfg.Level = parsed
	}
	return zapCfg.Build()
}
