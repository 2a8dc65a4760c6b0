package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("PACING_ROW_CAP", "10000"); err != nil {
		t.Fatalf("Failed to set PACING_ROW_CAP: %v", err)
	}
	if err := os.Setenv("PACING_QUERY_DEADLINE", "30s"); err != nil {
		t.Fatalf("Failed to set PACING_QUERY_DEADLINE: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("PACING_ROW_CAP")
		_ = os.Unsetenv("PACING_QUERY_DEADLINE")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Pacing.RowCap != 10000 {
		t.Errorf("Pacing.RowCap = %v, want %v", cfg.Pacing.RowCap, 10000)
	}

	if cfg.Pacing.QueryDeadline != 30*time.Second {
		t.Errorf("Pacing.QueryDeadline = %v, want %v", cfg.Pacing.QueryDeadline, 30*time.Second)
	}
}

func TestLoadConfig_PacingDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Pacing.Timezone != "America/New_York" {
		t.Errorf("Pacing.Timezone = %v, want America/New_York", cfg.Pacing.Timezone)
	}
	if cfg.Pacing.MaxLineItems != 500 {
		t.Errorf("Pacing.MaxLineItems = %v, want 500", cfg.Pacing.MaxLineItems)
	}
	if cfg.Pacing.MaxWindowDays != 180 {
		t.Errorf("Pacing.MaxWindowDays = %v, want 180", cfg.Pacing.MaxWindowDays)
	}
	if cfg.Pacing.RowCap != 50000 {
		t.Errorf("Pacing.RowCap = %v, want 50000", cfg.Pacing.RowCap)
	}
	if cfg.Pacing.QueryDeadline != 55*time.Second {
		t.Errorf("Pacing.QueryDeadline = %v, want 55s", cfg.Pacing.QueryDeadline)
	}
	if cfg.Pacing.MaxAttempts != 3 {
		t.Errorf("Pacing.MaxAttempts = %v, want 3", cfg.Pacing.MaxAttempts)
	}
	if cfg.Pacing.RetryBackoff != 2*time.Second {
		t.Errorf("Pacing.RetryBackoff = %v, want 2s", cfg.Pacing.RetryBackoff)
	}
}

func TestLoadConfig_InvalidTimezone(t *testing.T) {
	if err := os.Setenv("PACING_TIMEZONE", "Not/A_Zone"); err != nil {
		t.Fatalf("Failed to set PACING_TIMEZONE: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("PACING_TIMEZONE")
	}()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for invalid timezone")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	if err := os.Setenv("TEST_INT", "42"); err != nil {
		t.Fatalf("Failed to set TEST_INT: %v", err)
	}
	if err := os.Setenv("TEST_NOT_INT", "forty-two"); err != nil {
		t.Fatalf("Failed to set TEST_NOT_INT: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_INT")
		_ = os.Unsetenv("TEST_NOT_INT")
	}()

	if got := getEnvAsInt("TEST_INT", 7); got != 42 {
		t.Errorf("getEnvAsInt() = %v, want 42", got)
	}
	if got := getEnvAsInt("TEST_NOT_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() with unparseable value = %v, want 7", got)
	}
	if got := getEnvAsInt("TEST_MISSING_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() with missing value = %v, want 7", got)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	if err := os.Setenv("TEST_DURATION", "90s"); err != nil {
		t.Fatalf("Failed to set TEST_DURATION: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_DURATION")
	}()

	if got := getEnvAsDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 90s", got)
	}
	if got := getEnvAsDuration("TEST_MISSING_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvAsDuration() with missing value = %v, want 1m", got)
	}
}
