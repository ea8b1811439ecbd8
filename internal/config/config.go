package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	OpenAIKey     string
	OpenAIModel   string
	DatabaseURL   string
	Location      *time.Location

	// ConfirmWindow is how long a reminder waits for confirmation
	// before the task is marked skipped.
	ConfirmWindow time.Duration

	// Daily job times in HH:MM wall clock.
	KickstartTime string
	RolloverTime  string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ConfirmWindow: parseMinutes(strings.TrimSpace(os.Getenv("CONFIRM_WINDOW_MINUTES"))),
		KickstartTime: strings.TrimSpace(os.Getenv("KICKSTART_TIME")),
		RolloverTime:  strings.TrimSpace(os.Getenv("ROLLOVER_TIME")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "discipline.db"
	}
	if cfg.ConfirmWindow == 0 {
		cfg.ConfirmWindow = 5 * time.Minute
	}
	if cfg.KickstartTime == "" {
		cfg.KickstartTime = "05:30"
	}
	if cfg.RolloverTime == "" {
		cfg.RolloverTime = "00:05"
	}

	loc, err := loadLocation(strings.TrimSpace(os.Getenv("TIMEZONE")))
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func parseMinutes(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
