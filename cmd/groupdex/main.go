package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/groupdex/internal/config"
	"github.com/kailas-cloud/groupdex/internal/db/clickhouse"
	logpkg "github.com/kailas-cloud/groupdex/internal/logger"
	eventrepo "github.com/kailas-cloud/groupdex/internal/repository/event"
	grouprepo "github.com/kailas-cloud/groupdex/internal/repository/group"
	"github.com/kailas-cloud/groupdex/internal/repository/hitcache"
	chiTransport "github.com/kailas-cloud/groupdex/internal/transport/chi"
	searchuc "github.com/kailas-cloud/groupdex/internal/usecase/search"
	"github.com/kailas-cloud/groupdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting groupdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("relational_driver", cfg.Relational.Driver),
		zap.Strings("clickhouse_addrs", cfg.ClickHouse.Addrs),
		zap.String("dialect", cfg.ClickHouse.Dialect),
	)

	// Relational group store
	relational, err := sql.Open(cfg.Relational.Driver, cfg.Relational.DSN)
	if err != nil {
		logger.Fatal("Failed to open relational store", zap.Error(err))
	}
	defer relational.Close()

	ctx := context.Background()
	if err := relational.PingContext(ctx); err != nil {
		logger.Fatal("Relational store not ready", zap.Error(err))
	}

	// Analytical event store
	events, err := clickhouse.NewStore(clickhouse.Config{
		Addrs:       cfg.ClickHouse.Addrs,
		Database:    cfg.ClickHouse.Database,
		Username:    cfg.ClickHouse.Username,
		Password:    cfg.ClickHouse.Password,
		Table:       cfg.ClickHouse.Table,
		TimeColumn:  cfg.ClickHouse.TimeColumn,
		DialTimeout: time.Duration(cfg.ClickHouse.DialTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create clickhouse store", zap.Error(err))
	}
	defer events.Close()

	if err := events.Ping(ctx); err != nil {
		logger.Fatal("ClickHouse not ready", zap.Error(err))
	}
	logger.Info("Connected to stores")

	dialect := searchuc.EventsDialect
	if cfg.ClickHouse.Dialect == "groups" {
		dialect = searchuc.GroupsDialect
	}

	groups := grouprepo.New(relational, cfg.Relational.Driver)
	svc := searchuc.New(groups, eventrepo.New(events), dialect, searchuc.Options{
		MaxCandidates: cfg.Search.MaxCandidates,
		ChunkGrowth:   cfg.Search.ChunkGrowth,
		MaxChunkSize:  cfg.Search.MaxChunkSize,
		MaxTime:       time.Duration(cfg.Search.MaxTimeSec) * time.Second,
		SampleSize:    cfg.Search.SampleSize,
	}, logger).WithReleaseResolver(groups)

	// Optional hit-estimate cache
	if cfg.Cache.Enabled {
		rc, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: cfg.Cache.Addrs,
			Password:    cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to connect hit-estimate cache", zap.Error(err))
		}
		defer rc.Close()
		svc.WithEstimateCache(hitcache.New(rc, int64(cfg.Cache.TTLSec)))
		logger.Info("Hit-estimate cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	server := chiTransport.NewServer(svc, logger,
		cfg.Search.DefaultPageSize, cfg.Search.MaxPageSize,
		sqlPinger{relational}, events)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// sqlPinger adapts *sql.DB to the transport health-check contract.
type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
