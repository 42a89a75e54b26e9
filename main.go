package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/adapters/crm"
	"github.com/fieldbridge/fieldbridge-engine/pkg/config"
	"github.com/fieldbridge/fieldbridge-engine/pkg/handlers"
	"github.com/fieldbridge/fieldbridge-engine/pkg/logging"
	"github.com/fieldbridge/fieldbridge-engine/pkg/mcp"
	"github.com/fieldbridge/fieldbridge-engine/pkg/mcp/tools"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
	"github.com/fieldbridge/fieldbridge-engine/pkg/services"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("discovery_target", cfg.Discovery.TargetPlatform))

	seed := schema.MustLoad()
	brain := store.NewBrainStore(cfg.DataDir, seed, logger)
	discoveryStore := store.NewDiscoveryStore(cfg.DataDir, logger)
	engine := services.NewEngine(brain, logger)
	discovery := services.NewDiscoveryService(brain, discoveryStore, logger)

	resolve := newIntrospectorResolver(cfg, seed, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTranslateHandler(engine, logger).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(engine, logger).RegisterRoutes(mux)
	handlers.NewDiscoveryHandler(discovery, engine, resolve, logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("fieldbridge-engine", cfg.Version, logger)
	tools.RegisterTranslationTools(mcpServer.MCP(), &tools.TranslationToolDeps{Engine: engine, Logger: logger})
	tools.RegisterAuditTools(mcpServer.MCP(), &tools.AuditToolDeps{Discovery: discovery, Logger: logger})
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("Starting fieldbridge-engine",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// Flush learned state so nothing since the last feedback commit is lost.
	if err := engine.Save(); err != nil {
		logger.Error("Failed to save schema brain", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

// newIntrospectorResolver maps platforms to their configured schema
// sources: staging databases where configured, the builtin seed
// otherwise.
func newIntrospectorResolver(cfg *config.Config, seed *schema.Seed, logger *zap.Logger) handlers.IntrospectorResolver {
	return func(platform models.Platform) (crm.SchemaIntrospector, error) {
		switch {
		case cfg.Staging.PostgresURL != "" && platform == models.Platform(cfg.Staging.PostgresPlatform):
			logger.Info("Using postgres staging schema",
				zap.String("platform", string(platform)),
				zap.String("conn", logging.SanitizeConnectionString(cfg.Staging.PostgresURL)))
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			intr, err := crm.NewPostgresIntrospector(ctx, platform, cfg.Staging.PostgresURL, cfg.Staging.PostgresSchema, logger)
			if err != nil {
				return nil, fmt.Errorf("postgres introspector for %s: %w", platform, err)
			}
			return intr, nil
		case cfg.Staging.MSSQLURL != "" && platform == models.Platform(cfg.Staging.MSSQLPlatform):
			logger.Info("Using mssql staging schema",
				zap.String("platform", string(platform)),
				zap.String("conn", logging.SanitizeConnectionString(cfg.Staging.MSSQLURL)))
			intr, err := crm.NewMSSQLIntrospector(platform, cfg.Staging.MSSQLURL, cfg.Staging.MSSQLSchema, logger)
			if err != nil {
				return nil, fmt.Errorf("mssql introspector for %s: %w", platform, err)
			}
			return intr, nil
		default:
			return crm.NewStaticIntrospector(platform, seed), nil
		}
	}
}
