// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYARB_* environment
// variables. It is read once at process start and immutable within a run.
type Config struct {
	Mode     string `toml:"mode"` // "dry_run" or "live"
	LogLevel string `toml:"log_level"`

	Risk       RiskConfig       `toml:"risk"`
	Engine     EngineConfig     `toml:"engine"`
	Weather    WeatherConfig    `toml:"weather"`
	CrossArb   CrossArbConfig   `toml:"cross_arb"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Dashboard  DashboardConfig  `toml:"dashboard"`
	Notify     NotifyConfig     `toml:"notify"`
}

// RiskConfig holds the immutable risk limits applied every cycle.
type RiskConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	PerTradeFrac   float64 `toml:"per_trade_frac"`
	MaxExposure    float64 `toml:"max_exposure_frac"`
	DailyLossFrac  float64 `toml:"daily_loss_frac"`
	KellyFraction  float64 `toml:"kelly_fraction"`
	MinEdge        float64 `toml:"min_edge"`
	MinTradeUSD    float64 `toml:"min_trade_usd"`
}

// EngineConfig holds cycle-level parameters.
type EngineConfig struct {
	Interval       duration `toml:"interval"` // time between cycle starts
	LockStaleAfter duration `toml:"lock_stale_after"`
	MaxQuoteAge    duration `toml:"max_quote_age"`
	MaxSignals     int      `toml:"max_signals"`
	ScanWorkers    int      `toml:"scan_workers"`
}

// WeatherCity is one location the weather detector watches.
type WeatherCity struct {
	Name    string   `toml:"name"`
	Lat     float64  `toml:"lat"`
	Lon     float64  `toml:"lon"`
	Aliases []string `toml:"aliases"`
}

// WeatherConfig holds the weather edge detector parameters.
type WeatherConfig struct {
	Enabled        bool          `toml:"enabled"`
	MinEdge        float64       `toml:"min_edge"`
	MinLiquidity   float64       `toml:"min_liquidity"`
	MaxHoursOut    int           `toml:"max_hours_out"`
	MinHoursOut    int           `toml:"min_hours_out"`
	ForecastMaxAge duration      `toml:"forecast_max_age"`
	Cities         []WeatherCity `toml:"cities"`
}

// CrossArbConfig holds the cross-platform detector parameters. MarketMap is
// the explicit equivalence mapping from Polymarket market ID to Kalshi
// ticker; unmapped markets produce no cross-venue signal.
type CrossArbConfig struct {
	Enabled     bool               `toml:"enabled"`
	MinEdge     float64            `toml:"min_edge"`
	FeeBps      map[string]float64 `toml:"fee_bps"`
	SlippageBps float64            `toml:"slippage_bps"`
	MarketMap   map[string]string  `toml:"market_map"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
}

// KalshiConfig holds Kalshi exchange credentials. Setting ApiKey enables the
// cross-venue detector.
type KalshiConfig struct {
	ApiKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty DSN and
// host puts the engine on the in-memory ledger (dry-run only).
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int    `toml:"pool_max_conns"`
	MinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters for the quote cache.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
	TLS      bool   `toml:"tls"`
}

// DashboardConfig controls snapshot publishing after each committed cycle.
type DashboardConfig struct {
	Enabled bool     `toml:"enabled"`
	Path    string   `toml:"path"` // local JSON file target
	S3      S3Config `toml:"s3"`
}

// S3Config holds S3-compatible object storage parameters for snapshot upload.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Key            string `toml:"key"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10m", "45s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Mode:     "dry_run",
		LogLevel: "info",
		Risk: RiskConfig{
			InitialCapital: 100.0,
			PerTradeFrac:   0.08,
			MaxExposure:    0.70,
			DailyLossFrac:  0.15,
			KellyFraction:  0.25,
			MinEdge:        0.02,
			MinTradeUSD:    0.50,
		},
		Engine: EngineConfig{
			Interval:       duration{10 * time.Minute},
			LockStaleAfter: duration{30 * time.Minute},
			MaxQuoteAge:    duration{5 * time.Minute},
			MaxSignals:     5,
			ScanWorkers:    8,
		},
		Weather: WeatherConfig{
			Enabled:        true,
			MinEdge:        0.15,
			MinLiquidity:   500.0,
			MaxHoursOut:    336,
			MinHoursOut:    12,
			ForecastMaxAge: duration{6 * time.Hour},
			Cities: []WeatherCity{
				{Name: "New York", Lat: 40.7128, Lon: -74.0060, Aliases: []string{"nyc", "new york city"}},
				{Name: "London", Lat: 51.5074, Lon: -0.1278},
				{Name: "Chicago", Lat: 41.8781, Lon: -87.6298},
				{Name: "Seoul", Lat: 37.5665, Lon: 126.9780},
				{Name: "Sydney", Lat: -33.8688, Lon: 151.2093},
				{Name: "Dallas", Lat: 32.7767, Lon: -96.7970},
			},
		},
		CrossArb: CrossArbConfig{
			Enabled: true,
			MinEdge: 0.015,
			FeeBps: map[string]float64{
				"polymarket": 10.0,
				"kalshi":     70.0,
			},
			SlippageBps: 10.0,
			MarketMap:   map[string]string{},
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "polyarb",
			User:     "polyarb",
			SSLMode:  "disable",
			MaxConns: 4,
			MinConns: 1,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Path:    "dashboard/dashboard_data.json",
			S3: S3Config{
				Region: "us-east-1",
				Key:    "dashboard/dashboard_data.json",
			},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "halt", "partial_fill", "cycle_error"},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"dry_run": true,
	"live":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: dry_run, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Risk fractions must be sane; these bound every sizing decision.
	if c.Risk.InitialCapital <= 0 {
		errs = append(errs, "risk: initial_capital must be > 0")
	}
	if c.Risk.PerTradeFrac <= 0 || c.Risk.PerTradeFrac > 1 {
		errs = append(errs, "risk: per_trade_frac must be in (0, 1]")
	}
	if c.Risk.MaxExposure <= 0 || c.Risk.MaxExposure > 1 {
		errs = append(errs, "risk: max_exposure_frac must be in (0, 1]")
	}
	if c.Risk.PerTradeFrac > c.Risk.MaxExposure {
		errs = append(errs, "risk: per_trade_frac must not exceed max_exposure_frac")
	}
	if c.Risk.DailyLossFrac <= 0 || c.Risk.DailyLossFrac > 1 {
		errs = append(errs, "risk: daily_loss_frac must be in (0, 1]")
	}
	if c.Risk.KellyFraction <= 0 || c.Risk.KellyFraction > 1 {
		errs = append(errs, "risk: kelly_fraction must be in (0, 1]")
	}
	if c.Risk.MinEdge < 0 {
		errs = append(errs, "risk: min_edge must be >= 0")
	}

	if c.Engine.Interval.Duration <= 0 {
		errs = append(errs, "engine: interval must be > 0")
	}
	if c.Engine.LockStaleAfter.Duration <= 0 {
		errs = append(errs, "engine: lock_stale_after must be > 0")
	}
	if c.Engine.MaxQuoteAge.Duration <= 0 {
		errs = append(errs, "engine: max_quote_age must be > 0")
	}
	if c.Engine.ScanWorkers < 1 {
		errs = append(errs, "engine: scan_workers must be >= 1")
	}

	if c.Weather.Enabled {
		if c.Weather.MinHoursOut < 0 || c.Weather.MaxHoursOut <= c.Weather.MinHoursOut {
			errs = append(errs, "weather: max_hours_out must exceed min_hours_out")
		}
		if c.Weather.ForecastMaxAge.Duration <= 0 {
			errs = append(errs, "weather: forecast_max_age must be > 0")
		}
		if len(c.Weather.Cities) == 0 {
			errs = append(errs, "weather: at least one city is required when enabled")
		}
	}

	if c.CrossArb.Enabled && c.CrossArb.MinEdge <= 0 {
		errs = append(errs, "cross_arb: min_edge must be > 0 when enabled")
	}

	// Live trading needs a durable ledger and venue credentials.
	if strings.ToLower(c.Mode) == "live" {
		if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
			errs = append(errs, "postgres: dsn or host is required for live mode")
		}
	}
	if c.Postgres.MaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.MinConns < 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.Dashboard.S3.Enabled {
		if c.Dashboard.S3.Bucket == "" {
			errs = append(errs, "dashboard: s3.bucket must not be empty when s3 upload is enabled")
		}
		if c.Dashboard.S3.Region == "" {
			errs = append(errs, "dashboard: s3.region must not be empty when s3 upload is enabled")
		}
	}

	// Telegram credentials must be set together, or not at all.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DryRun reports whether the engine synthesizes fills instead of submitting
// real orders.
func (c *Config) DryRun() bool {
	return strings.ToLower(c.Mode) != "live"
}

// Limits converts the risk section into the domain value consumed by the
// governor.
func (c *Config) Limits() domain.RiskLimits {
	return domain.RiskLimits{
		PerTradeFrac:  c.Risk.PerTradeFrac,
		MaxExposure:   c.Risk.MaxExposure,
		DailyLossFrac: c.Risk.DailyLossFrac,
		KellyFraction: c.Risk.KellyFraction,
		MinEdge:       c.Risk.MinEdge,
		MinTradeUSD:   c.Risk.MinTradeUSD,
	}
}
