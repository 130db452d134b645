// Package config defines the global configuration structure for the irricast
// engine. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"
)

// Config is the top-level configuration struct for the irricast engine.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"irricast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Weather  WeatherConfig
	Model    ModelConfig
	Rules    RulesConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// WeatherConfig holds forecast source and cache configuration.
type WeatherConfig struct {
	BaseURL  string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com" validate:"url"`
	Timeout  time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
	CacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"1h"`
	MaxDays  int           `envconfig:"WEATHER_MAX_DAYS" default:"16" validate:"min=1"`
}

// ModelConfig holds training parameters for the regression candidates.
// SplitRatio and Seed are fixed per environment so training runs are
// reproducible for a given dataset.
type ModelConfig struct {
	SplitRatio float64 `envconfig:"MODEL_SPLIT_RATIO" default:"0.8" validate:"gt=0,lt=1"`
	MinRows    int     `envconfig:"MODEL_MIN_ROWS" default:"10" validate:"min=2"`
	Seed       int64   `envconfig:"MODEL_SEED" default:"42"`
}

// RulesConfig holds the decision-rule thresholds. Defaults reflect typical
// row-crop agronomy: irrigate below 30% volumetric moisture, never above
// 50%, and hold applications outside the 10-35 degC band or above 20 km/h
// wind.
type RulesConfig struct {
	MoistureMinPct   float64 `envconfig:"RULE_MOISTURE_MIN" default:"30" validate:"min=0,max=100"`
	MoistureMaxPct   float64 `envconfig:"RULE_MOISTURE_MAX" default:"50" validate:"min=0,max=100"`
	TempMinC         float64 `envconfig:"RULE_TEMP_MIN" default:"10"`
	TempMaxC         float64 `envconfig:"RULE_TEMP_MAX" default:"35"`
	WindMaxKmh       float64 `envconfig:"RULE_WIND_MAX" default:"20" validate:"min=0"`
	RecentRainMaxMM  float64 `envconfig:"RULE_RECENT_RAIN_MAX" default:"10" validate:"min=0"`
	RecentRainDays   int     `envconfig:"RULE_RECENT_RAIN_DAYS" default:"3" validate:"min=1"`
	ForecastRainMM   float64 `envconfig:"RULE_FORECAST_RAIN_MAX" default:"5" validate:"min=0"`
	TrendWindowSize  int     `envconfig:"RULE_TREND_WINDOW" default:"7" validate:"min=1"`
}

// DatabaseConfig holds the optional sensor-history store connection. When URL
// is empty the store-backed reload path is disabled and only CSV uploads are
// accepted.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}
