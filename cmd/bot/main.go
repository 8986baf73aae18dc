package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"

	"github.com/neurosales/neuroseller-bot/internal/bot"
	"github.com/neurosales/neuroseller-bot/internal/config"
	"github.com/neurosales/neuroseller-bot/internal/dialog"
	"github.com/neurosales/neuroseller-bot/internal/domain/onboarding"
	"github.com/neurosales/neuroseller-bot/internal/domain/tariffs"
	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/flow"
	"github.com/neurosales/neuroseller-bot/internal/infra/db"
	httpx "github.com/neurosales/neuroseller-bot/internal/infra/http"
	"github.com/neurosales/neuroseller-bot/internal/infra/logger"
	"github.com/neurosales/neuroseller-bot/internal/recommend"
	"github.com/neurosales/neuroseller-bot/internal/trial"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/example.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram auth failed", "err", err)
		return
	}
	log.Info("telegram authorized", "bot", api.Self.UserName)

	usersRepo := users.NewRepo(pool)
	answersRepo := onboarding.NewRepo(pool)
	tariffsRepo := tariffs.NewRepo(pool)
	statesRepo := dialog.NewRepo(pool)

	recClient := recommend.New(
		cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model,
		time.Duration(cfg.OpenAI.TimeoutSec)*time.Second, log)

	gate := trial.NewGate(usersRepo, log)

	var tgBot *bot.Bot
	machine := flow.NewMachine(log, usersRepo, answersRepo, tariffsRepo, statesRepo,
		recClient, cfg.Onboarding.Questions,
		time.Duration(cfg.Trial.PeriodDays)*24*time.Hour,
		func(chatID int64, text string) { tgBot.Progress(chatID, text) })

	tgBot = bot.New(api, log, machine, gate, usersRepo, cfg.Telegram.AdminChatID)

	sweeper := trial.NewSweeper(usersRepo, tgBot, log, cfg.Trial.ReminderDaysBefore)
	go sweeper.Run(ctx)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	go func() {
		if err := tgBot.Run(ctx, 30); err != nil && ctx.Err() == nil {
			log.Error("bot loop stopped", "err", err)
		}
	}()
	log.Info("bot started",
		slog.Int("questions", len(cfg.Onboarding.Questions)),
		slog.Int("trial_days", cfg.Trial.PeriodDays))

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
