package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	corecfg "github.com/aevon-lab/aevon-topn/internal/core/config"
	"github.com/aevon-lab/aevon-topn/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-topn/internal/historical"
	"github.com/aevon-lab/aevon-topn/internal/migrations"
	"github.com/aevon-lab/aevon-topn/internal/segment"
	"github.com/aevon-lab/aevon-topn/internal/server"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve top-N queries over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		return serve(cmd.Context(), configPath)
	},
}

func init() {
	serveCmd.Flags().String("config", "topn.yaml", "Path to configuration file")
}

func serve(ctx context.Context, configPath string) error {
	// 1. Load Configuration
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Info("Loaded config", "config", cfg)

	// 3. Initialize Segment Source
	source, db, err := openSource(cfg)
	if err != nil {
		return err
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 4. Initialize Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := topn.NewMetrics(reg)
	historicalMetrics := historical.NewMetrics(reg)

	// 5. Initialize Historical (segment manager + query service)
	manager := historical.NewManager(source)
	scheduler := historical.NewScheduler(cfg.Segments.RefreshEvery(), manager, historicalMetrics)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A failed first load is not fatal; the node serves what did load.
	_ = scheduler.RunOnce(ctx)

	engine := topn.NewEngine(topn.Options{
		ValuesPerPass:         cfg.Engine.ValuesPerPass,
		MaxConcurrentSegments: cfg.Engine.MaxConcurrentSegments,
		Metrics:               engineMetrics,
	})
	svc := historical.NewService(manager, engine, historical.Options{
		MaxThreshold:  cfg.Engine.MaxThreshold,
		CacheTTL:      cfg.Engine.CacheTTL(),
		CacheCapacity: cfg.Engine.ResultCacheCapacity,
		Metrics:       historicalMetrics,
	})

	// 6. Initialize Server
	srv := server.New(server.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Mode:         cfg.Server.Mode,
		DB:           db,
		Gatherer:     reg,
		SegmentCount: func() int { return len(manager.Segments()) },
		MaxBodyBytes: int64(cfg.Server.MaxBodySizeMB) << 20,
	})
	svc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	if cfg.Segments.RefreshEvery() > 0 {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Segment refresh disabled by config")
	}

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// openSource builds the configured segment source. db is non-nil only for
// the postgres source and backs the health check.
func openSource(cfg *corecfg.Config) (segment.Source, *sql.DB, error) {
	switch cfg.Segments.SourceType {
	case corecfg.SourcePostgres:
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		source, err := postgres.NewSegmentSource(db)
		if err != nil {
			return nil, nil, err
		}
		return source, db, nil
	default:
		return segment.NewFileSystemSource(cfg.Segments.Path), nil, nil
	}
}
