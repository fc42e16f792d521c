package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rewards-bot-backend/internal/bot"
	"rewards-bot-backend/internal/common/config"
	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/features/maintenance"
	requesttg "rewards-bot-backend/internal/features/request/delivery/telegram"
	requestfile "rewards-bot-backend/internal/features/request/repository/file"
	requestsvc "rewards-bot-backend/internal/features/request/service"
	walletflowtg "rewards-bot-backend/internal/features/walletflow/delivery/telegram"
	walletflowsvc "rewards-bot-backend/internal/features/walletflow/service"
	winnertg "rewards-bot-backend/internal/features/winner/delivery/telegram"
	"rewards-bot-backend/internal/features/winner/importer"
	winnerrepo "rewards-bot-backend/internal/features/winner/repository"
	"rewards-bot-backend/internal/features/winner/repository/rediscache"
	winnersqlite "rewards-bot-backend/internal/features/winner/repository/sqlite"
	winnersvc "rewards-bot-backend/internal/features/winner/service"
	httpapi "rewards-bot-backend/internal/http"
	tg "rewards-bot-backend/internal/platform/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.ProjectName, cfg.Telegram.BotToken, cfg.Debug)
	logger.Info().Str("project", cfg.ProjectName).Bool("debug", cfg.Debug).Msg("starting rewards bot")

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	deadline, err := cfg.DeadlineTime()
	if err != nil {
		return err
	}
	logger.Info().Time("deadline", deadline).Msg("wallet deadline configured")

	// Storage.
	sqliteRepo, err := winnersqlite.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	var winners winnerrepo.Repository = sqliteRepo
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		winners = rediscache.New(sqliteRepo, client, 5*time.Minute)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis status cache enabled")
	}
	requestRepo, err := requestfile.Open(cfg.Storage.RequestsFile)
	if err != nil {
		return err
	}

	// Seed the whitelist from the CSV next to the binary, if present.
	index := importer.NewIndex()
	if _, err := os.Stat(cfg.Storage.WinnersCSV); err == nil {
		n, err := index.Reload(cfg.Storage.WinnersCSV, importer.Options{})
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Storage.WinnersCSV).Msg("winner list load failed")
		} else {
			imported, _ := importer.ImportInto(ctx, winners, index.Rows())
			logger.Info().Int("rows", n).Int("imported", imported).Msg("winner list seeded")
		}
	}

	// Telegram client and services.
	client := tg.NewClient(cfg.Telegram.BotToken)
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot token check: %w", err)
	}
	logger.Info().Str("bot", me.Username).Msg("telegram token verified")

	winnerService := winnersvc.New(winners)
	flowService := walletflowsvc.New(walletflowsvc.Config{
		Repo:     winners,
		Notifier: bot.NewAdminNotifier(client, cfg.Telegram.AdminGroupID),
		Deadline: deadline,
	})
	requestService := requestsvc.New(requestRepo, winners)

	// Bot router and poller.
	router := bot.NewRouter(cfg,
		winnertg.NewHandler(client, winnerService, winners, index),
		walletflowtg.NewHandler(client, flowService),
		requesttg.NewHandler(client, requestService, cfg.Telegram.AdminGroupID, cfg.Telegram.AdminIDs),
	)
	poller := tg.NewPoller(client, router)

	// Maintenance jobs.
	maint := maintenance.New(maintenance.Config{
		DataDir:          cfg.Storage.DataDir,
		BackupDir:        cfg.Maintenance.BackupDir,
		BackupTime:       cfg.Maintenance.BackupTime,
		HeartbeatFile:    cfg.Maintenance.HeartbeatFile,
		WatchdogInterval: cfg.Maintenance.WatchdogInterval,
		WatchdogMaxFails: cfg.Maintenance.WatchdogMaxFails,
		AdminGroupID:     cfg.Telegram.AdminGroupID,
	}, client, client)
	go maint.RunBackups(ctx)
	go maint.RunWatchdog(ctx)

	// HTTP API.
	app := httpapi.NewApp(cfg, winnerService, requestService, maint)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	// Poll until a signal arrives.
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("poller stopped")
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	logger.Info().Msg("bye")
	return nil
}
