package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		JiraBaseURL:        "https://jira.example.com",
		JiraToken:          "token",
		JiraProject:        "DEMO",
		InProgressStatuses: []string{"In Progress"},
		CompletedStatuses:  []string{"Done"},
		BatchSizeBase:      100,
		BatchSizeMin:       10,
		BatchSizeMax:       200,
		RetryBudget:        3,
		WorkerCount:        5,
		StorageType:        "sqlite",
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JIRA_BASE_URL", "https://jira.example.com")
	t.Setenv("JIRA_TOKEN", "token")
	t.Setenv("JIRA_PROJECT", "DEMO")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.BatchSizeBase)
	assert.Equal(t, 10, cfg.BatchSizeMin)
	assert.Equal(t, 200, cfg.BatchSizeMax)
	assert.Equal(t, 3, cfg.RetryBudget)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 6, cfg.ForecastHistorySize)
	assert.Equal(t, "sqlite", cfg.StorageType)
	assert.Contains(t, cfg.InProgressStatuses, "In Progress")
	assert.Contains(t, cfg.CompletedStatuses, "Done")
	require.NoError(t, cfg.Validate())
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("IN_PROGRESS_STATUSES", "Doing, In Review ,Coding")
	t.Setenv("READ_TIMEOUT", "45s")
	t.Setenv("BATCH_SIZE_BASE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Doing", "In Review", "Coding"}, cfg.InProgressStatuses)
	assert.Equal(t, 45*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 50, cfg.BatchSizeBase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.JiraBaseURL = "" }, "JIRA_BASE_URL"},
		{"missing token", func(c *Config) { c.JiraToken = "" }, "JIRA_TOKEN"},
		{"missing project", func(c *Config) { c.JiraProject = "" }, "JIRA_PROJECT"},
		{"batch min below one", func(c *Config) { c.BatchSizeMin = 0 }, "BATCH_SIZE_MIN"},
		{"batch order violated", func(c *Config) { c.BatchSizeBase = 300 }, "BATCH_SIZE_BASE"},
		{"zero retry budget", func(c *Config) { c.RetryBudget = 0 }, "RETRY_BUDGET"},
		{"no in-progress statuses", func(c *Config) { c.InProgressStatuses = nil }, "IN_PROGRESS_STATUSES"},
		{"bad storage type", func(c *Config) { c.StorageType = "mysql" }, "STORAGE_TYPE"},
		{"postgres without url", func(c *Config) { c.StorageType = "postgres" }, "POSTGRES_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
