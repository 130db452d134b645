package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults verifies Load succeeds with an empty environment and
// populates every default.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "local")
	}
	if cfg.Service != "irricast" {
		t.Errorf("Service = %q, want %q", cfg.Service, "irricast")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want default %q", cfg.Server.Port, "8080")
	}
	if cfg.Server.RequestTimeout != 29*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 29s", cfg.Server.RequestTimeout)
	}

	if cfg.Weather.BaseURL != "https://api.open-meteo.com" {
		t.Errorf("Weather.BaseURL = %q, want open-meteo default", cfg.Weather.BaseURL)
	}
	if cfg.Weather.CacheTTL != time.Hour {
		t.Errorf("Weather.CacheTTL = %v, want 1h", cfg.Weather.CacheTTL)
	}
	if cfg.Weather.MaxDays != 16 {
		t.Errorf("Weather.MaxDays = %d, want 16", cfg.Weather.MaxDays)
	}

	if cfg.Model.SplitRatio != 0.8 {
		t.Errorf("Model.SplitRatio = %v, want 0.8", cfg.Model.SplitRatio)
	}
	if cfg.Model.MinRows != 10 {
		t.Errorf("Model.MinRows = %d, want 10", cfg.Model.MinRows)
	}
	if cfg.Model.Seed != 42 {
		t.Errorf("Model.Seed = %d, want 42", cfg.Model.Seed)
	}

	if cfg.Rules.MoistureMinPct != 30 || cfg.Rules.MoistureMaxPct != 50 {
		t.Errorf("moisture band = [%.1f, %.1f], want [30, 50]",
			cfg.Rules.MoistureMinPct, cfg.Rules.MoistureMaxPct)
	}
	if cfg.Rules.TempMinC != 10 || cfg.Rules.TempMaxC != 35 {
		t.Errorf("temperature band = [%.1f, %.1f], want [10, 35]",
			cfg.Rules.TempMinC, cfg.Rules.TempMaxC)
	}
	if cfg.Rules.WindMaxKmh != 20 {
		t.Errorf("Rules.WindMaxKmh = %v, want 20", cfg.Rules.WindMaxKmh)
	}
	if cfg.Rules.RecentRainMaxMM != 10 || cfg.Rules.RecentRainDays != 3 {
		t.Errorf("recent rain = %.1fmm/%dd, want 10mm/3d",
			cfg.Rules.RecentRainMaxMM, cfg.Rules.RecentRainDays)
	}
	if cfg.Rules.ForecastRainMM != 5 {
		t.Errorf("Rules.ForecastRainMM = %v, want 5", cfg.Rules.ForecastRainMM)
	}
	if cfg.Rules.TrendWindowSize != 7 {
		t.Errorf("Rules.TrendWindowSize = %d, want 7", cfg.Rules.TrendWindowSize)
	}

	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (store disabled)", cfg.Database.URL)
	}
	if cfg.Database.MaxConns != 4 {
		t.Errorf("Database.MaxConns = %d, want 4", cfg.Database.MaxConns)
	}
}

// TestLoadEnvOverrides verifies OS environment values win over defaults.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_CACHE_TTL", "15m")
	t.Setenv("RULE_MOISTURE_MIN", "25")
	t.Setenv("MODEL_SEED", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Environment != "prod" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "prod")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}
	if cfg.Weather.CacheTTL != 15*time.Minute {
		t.Errorf("Weather.CacheTTL = %v, want 15m", cfg.Weather.CacheTTL)
	}
	if cfg.Rules.MoistureMinPct != 25 {
		t.Errorf("Rules.MoistureMinPct = %v, want 25", cfg.Rules.MoistureMinPct)
	}
	if cfg.Model.Seed != 7 {
		t.Errorf("Model.Seed = %d, want 7", cfg.Model.Seed)
	}
}

// TestLoadInvalidEnvironment verifies the oneof constraint on APP_ENV.
func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production-ish")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail for unknown APP_ENV")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error should be *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("Type = %q, want %q", cfgErr.Type, ErrValidation)
	}
}

// TestLoadParsingFailure verifies malformed values surface as PARSING_FAILED.
func TestLoadParsingFailure(t *testing.T) {
	t.Setenv("WEATHER_TIMEOUT", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail for a malformed duration")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error should be *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("Type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

// TestLoadMoistureBandInverted verifies the cross-field check on the
// moisture band.
func TestLoadMoistureBandInverted(t *testing.T) {
	t.Setenv("RULE_MOISTURE_MIN", "60")
	t.Setenv("RULE_MOISTURE_MAX", "40")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when RULE_MOISTURE_MIN >= RULE_MOISTURE_MAX")
	}
	if !strings.Contains(err.Error(), "RULE_MOISTURE_MIN") {
		t.Errorf("error should name the offending variable, got %q", err.Error())
	}
}

// TestLoadTemperatureBandInverted verifies the cross-field check on the
// temperature band.
func TestLoadTemperatureBandInverted(t *testing.T) {
	t.Setenv("RULE_TEMP_MIN", "40")
	t.Setenv("RULE_TEMP_MAX", "10")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail when RULE_TEMP_MIN >= RULE_TEMP_MAX")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error should be *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("Type = %q, want %q", cfgErr.Type, ErrValidation)
	}
}
