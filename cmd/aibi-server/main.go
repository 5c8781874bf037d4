package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdamZagri/aibi-server/agent"
	"github.com/AdamZagri/aibi-server/config"
	"github.com/AdamZagri/aibi-server/dbpool"
	"github.com/AdamZagri/aibi-server/llm"
	"github.com/AdamZagri/aibi-server/logger"
	"github.com/AdamZagri/aibi-server/notify"
	"github.com/AdamZagri/aibi-server/server"
	"github.com/AdamZagri/aibi-server/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := dbpool.New(dbpool.EngineDuckDB, func(msg string) { log.Debug(msg) })
	db, err := manager.OpenReadOnly(cfg.DuckDBPath)
	if err != nil {
		return fmt.Errorf("open analytic database: %w", err)
	}
	defer db.Close()

	dialect := dbpool.NewDialect(dbpool.EngineDuckDB)
	schemaCache := agent.NewSchemaCache(db, dialect, cfg.DuckDBPath, log)
	if err := schemaCache.Refresh(ctx); err != nil {
		return fmt.Errorf("initial schema load: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	rules := agent.LoadRules(cfg, log)
	querier := agent.NewDBQuerier(db)
	repo := session.NewRepository(cfg.SessionTTL)
	repo.StartSweeper(ctx, cfg.SweepInterval, log)
	hub := notify.NewHub(log)

	pipeline := agent.NewPipeline(
		repo,
		agent.NewClassifier(client, rules),
		agent.NewSynthesizer(client, rules),
		agent.NewHistorian(client, cfg.CompactAfter, cfg.HistoryLimit),
		agent.NewExecutor(querier, client, rules, cfg.MaxRefine, cfg.RetryBackoff, log),
		querier,
		schemaCache,
		hub,
		cfg.HistoryLimit,
		log,
	)

	handlers := server.NewHandlers(cfg, pipeline, repo, querier, schemaCache, dialect, hub, log)
	router := server.NewRouter(cfg, handlers)

	log.Info("listening", "port", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
