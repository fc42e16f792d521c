package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ProjectName string `env:"PROJECT_NAME" envDefault:"Savitri_Rewards"`

	Telegram struct {
		BotToken     string  `env:"BOT_TOKEN,required"`
		AdminIDs     []int64 `env:"ADMIN_IDS" envSeparator:","`
		AdminGroupID int64   `env:"ADMIN_GROUP_ID" envDefault:"0"`
	}

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
		// Bearer token guarding the admin HTTP endpoints. Empty disables them.
		AdminToken string `env:"ADMIN_API_TOKEN" envDefault:""`
		// Init-data TTL for Mini App auth; 0 disables the expiration check.
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"1h"`
	}

	Storage struct {
		DataDir      string `env:"DATA_DIR" envDefault:"data"`
		DatabasePath string `env:"DATABASE_PATH" envDefault:"data/rewards.db"`
		RequestsFile string `env:"REQUESTS_FILE" envDefault:"data/wallet_update_requests.json"`
		WinnersCSV   string `env:"WINNERS_CSV_PATH" envDefault:"winners_with_wvc.csv"`
	}

	Redis struct {
		// Empty address disables the status cache entirely.
		Addr     string `env:"REDIS_ADDR" envDefault:""`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Contest struct {
		// Last day wallet mutations are accepted, dd-mm-yyyy in Timezone.
		Deadline string `env:"DEADLINE" envDefault:"30-11-2025"`
		Timezone string `env:"TIMEZONE" envDefault:"Europe/London"`
	}

	Maintenance struct {
		BackupDir        string        `env:"BACKUP_DIR" envDefault:"backups"`
		BackupTime       string        `env:"BACKUP_TIME" envDefault:"03:00"`
		HeartbeatFile    string        `env:"HEARTBEAT_FILE" envDefault:"data/heartbeat.txt"`
		WatchdogInterval time.Duration `env:"WATCHDOG_INTERVAL" envDefault:"30s"`
		WatchdogMaxFails int           `env:"WATCHDOG_MAX_FAILS" envDefault:"6"`
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DeadlineTime resolves the configured contest deadline to the last instant
// of that day in the configured timezone.
func (c *Config) DeadlineTime() (time.Time, error) {
	loc, err := time.LoadLocation(c.Contest.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", c.Contest.Timezone, err)
	}
	day, err := time.ParseInLocation("02-01-2006", c.Contest.Deadline, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse deadline %q: %w", c.Contest.Deadline, err)
	}
	return day.Add(24*time.Hour - time.Second), nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
