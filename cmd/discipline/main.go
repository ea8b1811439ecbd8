package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"discipline-engine/internal/bot"
	"discipline-engine/internal/config"
	"discipline-engine/internal/engine"
	"discipline-engine/internal/generator"
	"discipline-engine/internal/repository"
	"discipline-engine/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	punishmentRepo := repository.NewPunishmentRepository(db)
	goalRepo := repository.NewGoalRepository(db)

	var textGen generator.TextGenerator
	if cfg.OpenAIKey != "" {
		textGen = generator.NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel, logger)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, falling back to canned texts")
		textGen = generator.Disabled{}
	}

	clock := engine.SystemClock{Location: cfg.Location}

	punishmentSvc := service.NewPunishmentService(punishmentRepo, textGen, clock, logger)
	scheduleSvc := service.NewScheduleService(scheduleRepo, punishmentSvc, clock, logger)
	coachSvc := service.NewCoachService(textGen, logger)
	plannerSvc := service.NewPlannerService(goalRepo, scheduleRepo, textGen, logger)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, scheduleSvc, punishmentSvc, plannerSvc, coachSvc, clock, logger)
	if err != nil {
		logger.Fatal("create bot", zap.Error(err))
	}

	reminders := engine.NewReminderScheduler(clock, cfg.ConfirmWindow, telegramBot, telegramBot, scheduleSvc, logger)
	defer reminders.Stop()
	telegramBot.SetReminderScheduler(reminders)
	scheduleSvc.SetReminderPlanner(reminders)
	scheduleSvc.SetDayCompleteFunc(telegramBot.SendDayReport)

	scheduler := service.NewSchedulerService(cfg.Location)
	if _, err := scheduler.ScheduleDaily(cfg.RolloverTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := telegramBot.RolloverDay(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("rollover job", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("schedule rollover", zap.Error(err))
	}
	if _, err := scheduler.ScheduleDaily(cfg.KickstartTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := telegramBot.SendKickstarts(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("kickstart job", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("schedule kickstart", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Re-arm today's reminders for everyone after a restart.
	bootCtx, cancel := context.WithTimeout(ctx, time.Minute)
	if err := telegramBot.RolloverDay(bootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("boot rollover", zap.Error(err))
	}
	cancel()

	logger.Info("discipline bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("bot stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
