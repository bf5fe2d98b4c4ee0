package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultDatabasePath is where the SQLite database lives unless overridden.
const DefaultDatabasePath = "./library.db"

type (
	Config struct {
		HTTP
		Global
		Database
		Loans
		Sweep
		Tasks
		SMTP
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Loans struct {
		MaxPerUser         int           // concurrent open loans allowed per user
		PeriodDays         int           // default loan length when no due date is supplied
		FinePerDay         int           // fine accrued per overdue day
		ReturnedKeep       int           // Returned records kept by the pruning job
		EscalationDelay    time.Duration // first fine check fires this long after the due date
		EscalationInterval time.Duration // gap between subsequent fine checks
	}
	Sweep struct {
		Enabled     bool
		Schedule    string // Cron format: "0 9 * * *" = daily at 9 AM
		WindowHours int    // due-soon horizon in hours
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Auth struct {
		JWTSecret   string
		TokenExpiry time.Duration
		BcryptCost  int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Loan policy defaults
	v.SetDefault("loan_max_per_user", 3)
	v.SetDefault("loan_period_days", 10)
	v.SetDefault("fine_per_day", 10)
	v.SetDefault("returned_keep", 10)
	v.SetDefault("escalation_initial_delay", "24h")
	v.SetDefault("escalation_interval", "48h")

	// Due-soon sweep defaults
	v.SetDefault("sweep_enabled", true)
	v.SetDefault("sweep_schedule", "0 9 * * *")
	v.SetDefault("sweep_window_hours", 24)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// SMTP defaults (empty host means reminders are logged, not sent)
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "library@localhost")

	// Auth defaults
	v.SetDefault("jwt_secret", "")
	v.SetDefault("auth_token_expiry", "1h")
	v.SetDefault("auth_bcrypt_cost", 10)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Loans: Loans{
			MaxPerUser:         v.GetInt("LOAN_MAX_PER_USER"),
			PeriodDays:         v.GetInt("LOAN_PERIOD_DAYS"),
			FinePerDay:         v.GetInt("FINE_PER_DAY"),
			ReturnedKeep:       v.GetInt("RETURNED_KEEP"),
			EscalationDelay:    v.GetDuration("ESCALATION_INITIAL_DELAY"),
			EscalationInterval: v.GetDuration("ESCALATION_INTERVAL"),
		},
		Sweep: Sweep{
			Enabled:     v.GetBool("SWEEP_ENABLED"),
			Schedule:    v.GetString("SWEEP_SCHEDULE"),
			WindowHours: v.GetInt("SWEEP_WINDOW_HOURS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		SMTP: SMTP{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Auth: Auth{
			JWTSecret:   v.GetString("JWT_SECRET"),
			TokenExpiry: v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:  v.GetInt("AUTH_BCRYPT_COST"),
		},
	}
}
