package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Environment
	AppEnv string // "dev" or "prod"

	// Jira
	JiraBaseURL string
	JiraToken   string
	JiraProject string
	JiraJQL     string // optional extra JQL appended to the project filter

	// Workflow status sets
	InProgressStatuses []string
	CompletedStatuses  []string

	// Adaptive fetching
	BatchSizeBase     int
	BatchSizeMin      int
	BatchSizeMax      int
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	RetryBudget       int
	GrowthThreshold   int // consecutive successes before the batch size grows
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	RateLimitWaitCap  time.Duration
	MaxTotalIssues    int // safety limit on issues per session
	MaxSessionRuntime time.Duration
	WorkerCount       int // changelog resolver pool size

	// Forecast
	ForecastHistorySize int
	SprintLengthDays    int

	// Storage
	StorageType string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// Scheduled collection ("" disables the cron entry)
	CollectCron string

	// CLI
	APIEndpoint string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		AppEnv:      getEnv("APP_ENV", "dev"),
		JiraBaseURL: getEnv("JIRA_BASE_URL", ""),
		JiraToken:   getEnv("JIRA_TOKEN", ""),
		JiraProject: getEnv("JIRA_PROJECT", ""),
		JiraJQL:     getEnv("JIRA_JQL", ""),

		InProgressStatuses: getEnvList("IN_PROGRESS_STATUSES", "In Progress,In Development,In Review,Doing"),
		CompletedStatuses:  getEnvList("COMPLETED_STATUSES", "Done,Closed,Resolved"),

		BatchSizeBase:     getEnvInt("BATCH_SIZE_BASE", 100),
		BatchSizeMin:      getEnvInt("BATCH_SIZE_MIN", 10),
		BatchSizeMax:      getEnvInt("BATCH_SIZE_MAX", 200),
		ConnectTimeout:    getEnvDuration("CONNECT_TIMEOUT", 5*time.Second),
		ReadTimeout:       getEnvDuration("READ_TIMEOUT", 30*time.Second),
		RetryBudget:       getEnvInt("RETRY_BUDGET", 3),
		GrowthThreshold:   getEnvInt("GROWTH_THRESHOLD", 3),
		BackoffBase:       getEnvDuration("BACKOFF_BASE", 500*time.Millisecond),
		BackoffCap:        getEnvDuration("BACKOFF_CAP", 30*time.Second),
		RateLimitWaitCap:  getEnvDuration("RATE_LIMIT_WAIT_CAP", 2*time.Minute),
		MaxTotalIssues:    getEnvInt("MAX_TOTAL_ISSUES", 2000),
		MaxSessionRuntime: getEnvDuration("MAX_SESSION_RUNTIME", 10*time.Minute),
		WorkerCount:       getEnvInt("WORKER_COUNT", 5),

		ForecastHistorySize: getEnvInt("FORECAST_HISTORY_SIZE", 6),
		SprintLengthDays:    getEnvInt("SPRINT_LENGTH_DAYS", 14),

		StorageType: getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./flowmetrics.db"),
		PostgresURL: getEnv("POSTGRES_URL", ""),
		APIPort:     getEnv("API_PORT", "8080"),
		APIHost:     getEnv("API_HOST", "localhost"),
		CollectCron: getEnv("COLLECT_CRON", ""),
		APIEndpoint: getEnv("API_ENDPOINT", "http://localhost:8080"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JiraBaseURL == "" {
		return &ConfigError{Field: "JIRA_BASE_URL", Message: "Jira base URL is required"}
	}
	if c.JiraToken == "" {
		return &ConfigError{Field: "JIRA_TOKEN", Message: "Jira API token is required"}
	}
	if c.JiraProject == "" {
		return &ConfigError{Field: "JIRA_PROJECT", Message: "Jira project key is required"}
	}
	if c.BatchSizeMin < 1 {
		return &ConfigError{Field: "BATCH_SIZE_MIN", Message: "must be at least 1"}
	}
	if c.BatchSizeMin > c.BatchSizeBase || c.BatchSizeBase > c.BatchSizeMax {
		return &ConfigError{Field: "BATCH_SIZE_BASE", Message: "batch sizes must satisfy min <= base <= max"}
	}
	if c.RetryBudget < 1 {
		return &ConfigError{Field: "RETRY_BUDGET", Message: "must be at least 1"}
	}
	if c.WorkerCount < 1 {
		return &ConfigError{Field: "WORKER_COUNT", Message: "must be at least 1"}
	}
	if len(c.InProgressStatuses) == 0 {
		return &ConfigError{Field: "IN_PROGRESS_STATUSES", Message: "at least one in-progress status is required"}
	}
	if len(c.CompletedStatuses) == 0 {
		return &ConfigError{Field: "COMPLETED_STATUSES", Message: "at least one completed status is required"}
	}
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
