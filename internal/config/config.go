package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App       App       `env-prefix:"APP_"`
		HTTP      HTTP      `env-prefix:"HTTP_"`
		Logger    Logger    `env-prefix:"LOGGER_"`
		Database  Database  `env-prefix:"DB_"`
		Cache     Cache     `env-prefix:"CACHE_"`
		SMTP      SMTP      `env-prefix:"SMTP_"`
		Metrics   Metrics   `env-prefix:"METRICS_"`
		Scheduler Scheduler `env-prefix:"SCHEDULER_"`
		Env       string    `env:"ENV" env-default:"local" validate:"oneof=local dev staging prod"`
	}

	App struct {
		Name    string `env:"NAME"    env-default:"bando-notifier" validate:"required"`
		Version string `env:"VERSION" env-default:"dev"            validate:"required"`
	}

	HTTP struct {
		Host              string        `env:"HOST"                env-default:"0.0.0.0" validate:"required"`
		Port              int           `env:"PORT"                env-default:"8080"    validate:"gte=1,lte=65535"`
		ReadTimeout       time.Duration `env:"READ_TIMEOUT"        env-default:"5s"      validate:"gte=10ms,lte=30s"`
		WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       env-default:"5s"      validate:"gte=10ms,lte=30s"`
		IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        env-default:"60s"     validate:"gte=10ms,lte=120s"`
		ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"    env-default:"10s"     validate:"gte=10ms,lte=30s"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" env-default:"5s"      validate:"gte=10ms,lte=30s"`
	}

	Logger struct {
		Level      string `env:"LEVEL"       env-default:"info" validate:"oneof=debug info warn error"`
		Filename   string `env:"FILENAME"    env-default:"./logs/bando-notifier.log"`
		MaxSize    int    `env:"MAX_SIZE"    env-default:"100"  validate:"min=1,max=1000"`
		MaxBackups int    `env:"MAX_BACKUPS" env-default:"3"    validate:"min=0,max=20"`
		MaxAge     int    `env:"MAX_AGE"     env-default:"28"   validate:"min=1,max=365"`
	}

	Database struct {
		DSN           string `env:"DSN" validate:"required"`
		PoolMax       int    `env:"POOL_MAX"       env-default:"10" validate:"min=1,max=100"`
		MigrationsURL string `env:"MIGRATIONS_URL" env-default:"file://migrations"`
	}

	Cache struct {
		Addr     string        `env:"ADDR"     env-default:"localhost:6379"`
		Password string        `env:"PASSWORD" env-default:""`
		DB       int           `env:"DB"       env-default:"0" validate:"min=0,max=15"`
		TTL      time.Duration `env:"TTL"      env-default:"5m" validate:"gte=1s,lte=1h"`
	}

	SMTP struct {
		Host     string `env:"HOST"     env-default:"localhost"`
		Port     int    `env:"PORT"     env-default:"587" validate:"gte=1,lte=65535"`
		Username string `env:"USERNAME" env-default:""`
		Password string `env:"PASSWORD" env-default:""`
		Sender   string `env:"SENDER"   env-default:"noreply@bandonotifier.local" validate:"required"`
	}

	Metrics struct {
		Host              string        `env:"HOST"                env-default:"0.0.0.0" validate:"required"`
		Port              int           `env:"PORT"                env-default:"8081"    validate:"gte=1,lte=65535"`
		ReadTimeout       time.Duration `env:"READ_TIMEOUT"        env-default:"5s"      validate:"gte=10ms,lte=30s"`
		WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       env-default:"5s"      validate:"gte=10ms,lte=30s"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" env-default:"5s"      validate:"gte=10ms,lte=30s"`
	}

	// Scheduler is the startup configuration for the three recurring loops.
	// The same shape is merged at runtime through the operator API.
	Scheduler struct {
		AlertInterval   time.Duration `env:"ALERT_INTERVAL"   env-default:"60m"                validate:"gte=1m,lte=24h"`
		AlertTimes      string        `env:"ALERT_TIMES"      env-default:"09:00,14:00,18:00"`
		AlertTolerance  time.Duration `env:"ALERT_TOLERANCE"  env-default:"2m"                 validate:"gte=30s,lte=30m"`
		DigestDay       string        `env:"DIGEST_DAY"       env-default:"Monday"`
		DigestTime      string        `env:"DIGEST_TIME"      env-default:"08:30"`
		DigestTolerance time.Duration `env:"DIGEST_TOLERANCE" env-default:"5m"                 validate:"gte=30s,lte=30m"`
		DrainInterval   time.Duration `env:"DRAIN_INTERVAL"   env-default:"5m"                 validate:"gte=30s,lte=1h"`
		DrainBatchSize  int           `env:"DRAIN_BATCH_SIZE" env-default:"10"                 validate:"min=1,max=100"`
		AutoStart       bool          `env:"AUTO_START"       env-default:"true"`
	}
)

// AlertTimeList splits the comma-separated target times.
func (s Scheduler) AlertTimeList() []string {
	parts := strings.Split(s.AlertTimes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			msgs := make([]string, 0, len(validationErrs))
			for _, ve := range validationErrs {
				msgs = append(msgs, fmt.Sprintf("%s=%v must satisfy '%s'", ve.Field(), ve.Value(), ve.Tag()))
			}
			return fmt.Errorf("config validation: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}
