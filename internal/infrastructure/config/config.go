package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/iho/fintrack/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Storage. DatabaseURL wins over StorageURL when both are set.
	DatabaseURL      string        `env:"DATABASE_URL"`
	StorageURL       string        `env:"STORAGE_URL"`
	ServiceKey       string        `env:"DATABASE_SERVICE_KEY"`
	DatabaseMaxConns int           `env:"DATABASE_MAX_CONNS" envDefault:"5"`
	DatabaseMinConns int           `env:"DATABASE_MIN_CONNS" envDefault:"0"`
	DatabaseTimeout  time.Duration `env:"DATABASE_TIMEOUT"   envDefault:"10s"`
	MigrationsPath   string        `env:"MIGRATIONS_PATH"    envDefault:"internal/infrastructure/postgres/migrations"`
	RunMigrations    bool          `env:"RUN_MIGRATIONS"     envDefault:"false"`

	// Redis (optional - leave empty to disable the settlement lock)
	RedisURL         string        `env:"REDIS_URL"          envDefault:""`
	RedisDialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"60s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Per-IP limit for manual triggers (0 disables)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"1"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Cron authorization (empty secret disables the check)
	CronSecret         string `env:"CRON_SECRET"          envDefault:""`
	SchedulerUserAgent string `env:"SCHEDULER_USER_AGENT" envDefault:"vercel-cron"`

	// Settlement
	SettleTestMode      bool          `env:"SETTLE_TEST_MODE"      envDefault:"false"`
	SettleTimezone      string        `env:"SETTLE_TIMEZONE"       envDefault:"Asia/Shanghai"`
	SettleWeekday       string        `env:"SETTLE_WEEKDAY"        envDefault:"monday"`
	SettleHour          int           `env:"SETTLE_HOUR"           envDefault:"0"`
	SettleWindowMinutes int           `env:"SETTLE_WINDOW_MINUTES" envDefault:"3"`
	SettleLockTTL       time.Duration `env:"SETTLE_LOCK_TTL"       envDefault:"2m"`
	SettleTimeout       time.Duration `env:"SETTLE_TIMEOUT"        envDefault:"30s"`

	// In-process scheduler
	SchedulerEnabled  bool          `env:"SCHEDULER_ENABLED"  envDefault:"false"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`

	// Resolved during Load
	Location *time.Location `env:"-"`
	Window   domain.Window  `env:"-"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.StorageURL
	}

	cfg.Location, err = time.LoadLocation(cfg.SettleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLE_TIMEZONE %q: %w", cfg.SettleTimezone, err)
	}

	weekday, err := ParseWeekday(cfg.SettleWeekday)
	if err != nil {
		return nil, err
	}

	cfg.Window = domain.Window{
		Weekday: weekday,
		Hour:    cfg.SettleHour,
		Minutes: cfg.SettleWindowMinutes,
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StorageError reports missing storage settings. The server still starts
// without them; settlement requests then fail with a configuration error.
func (c *Config) StorageError() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL or STORAGE_URL")
	}
	if c.ServiceKey == "" {
		missing = append(missing, "DATABASE_SERVICE_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
}

// Mode returns the settlement cadence.
func (c *Config) Mode() domain.Mode {
	return domain.Mode{TestMode: c.SettleTestMode, Window: c.Window}
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "0": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "1": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "2": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "3": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "4": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "5": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "6": time.Saturday,
}

// ErrInvalidWeekday is returned for an unknown SETTLE_WEEKDAY.
var ErrInvalidWeekday = errors.New("invalid SETTLE_WEEKDAY")

// ParseWeekday accepts full or short English names and 0-6 (Sunday = 0).
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
	}
	return d, nil
}
