package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing config file
// is not an error: the engine can run entirely from defaults plus env vars.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file, which is how the scheduled-runner deployment provides credentials.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")

	// ── Risk ──
	setFloat64(&cfg.Risk.InitialCapital, "POLYARB_RISK_INITIAL_CAPITAL")
	setFloat64(&cfg.Risk.PerTradeFrac, "POLYARB_RISK_PER_TRADE_FRAC")
	setFloat64(&cfg.Risk.MaxExposure, "POLYARB_RISK_MAX_EXPOSURE_FRAC")
	setFloat64(&cfg.Risk.DailyLossFrac, "POLYARB_RISK_DAILY_LOSS_FRAC")
	setFloat64(&cfg.Risk.KellyFraction, "POLYARB_RISK_KELLY_FRACTION")
	setFloat64(&cfg.Risk.MinEdge, "POLYARB_RISK_MIN_EDGE")
	setFloat64(&cfg.Risk.MinTradeUSD, "POLYARB_RISK_MIN_TRADE_USD")

	// ── Engine ──
	setDuration(&cfg.Engine.Interval, "POLYARB_ENGINE_INTERVAL")
	setDuration(&cfg.Engine.LockStaleAfter, "POLYARB_ENGINE_LOCK_STALE_AFTER")
	setDuration(&cfg.Engine.MaxQuoteAge, "POLYARB_ENGINE_MAX_QUOTE_AGE")
	setInt(&cfg.Engine.MaxSignals, "POLYARB_ENGINE_MAX_SIGNALS")
	setInt(&cfg.Engine.ScanWorkers, "POLYARB_ENGINE_SCAN_WORKERS")

	// ── Weather ──
	setBool(&cfg.Weather.Enabled, "POLYARB_WEATHER_ENABLED")
	setFloat64(&cfg.Weather.MinEdge, "POLYARB_WEATHER_MIN_EDGE")
	setFloat64(&cfg.Weather.MinLiquidity, "POLYARB_WEATHER_MIN_LIQUIDITY")
	setInt(&cfg.Weather.MaxHoursOut, "POLYARB_WEATHER_MAX_HOURS_OUT")
	setInt(&cfg.Weather.MinHoursOut, "POLYARB_WEATHER_MIN_HOURS_OUT")
	setDuration(&cfg.Weather.ForecastMaxAge, "POLYARB_WEATHER_FORECAST_MAX_AGE")

	// ── Cross-platform arbitrage ──
	setBool(&cfg.CrossArb.Enabled, "POLYARB_CROSS_ARB_ENABLED")
	setFloat64(&cfg.CrossArb.MinEdge, "POLYARB_CROSS_ARB_MIN_EDGE")
	setFloat64(&cfg.CrossArb.SlippageBps, "POLYARB_CROSS_ARB_SLIPPAGE_BPS")

	// ── Venues ──
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Kalshi.ApiKey, "POLYARB_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.BaseURL, "POLYARB_KALSHI_BASE_URL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "POLYARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "POLYARB_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLS, "POLYARB_REDIS_TLS")

	// ── Dashboard ──
	setBool(&cfg.Dashboard.Enabled, "POLYARB_DASHBOARD_ENABLED")
	setStr(&cfg.Dashboard.Path, "POLYARB_DASHBOARD_PATH")
	setBool(&cfg.Dashboard.S3.Enabled, "POLYARB_DASHBOARD_S3_ENABLED")
	setStr(&cfg.Dashboard.S3.Endpoint, "POLYARB_DASHBOARD_S3_ENDPOINT")
	setStr(&cfg.Dashboard.S3.Region, "POLYARB_DASHBOARD_S3_REGION")
	setStr(&cfg.Dashboard.S3.Bucket, "POLYARB_DASHBOARD_S3_BUCKET")
	setStr(&cfg.Dashboard.S3.Key, "POLYARB_DASHBOARD_S3_KEY")
	setStr(&cfg.Dashboard.S3.AccessKey, "POLYARB_DASHBOARD_S3_ACCESS_KEY")
	setStr(&cfg.Dashboard.S3.SecretKey, "POLYARB_DASHBOARD_S3_SECRET_KEY")
	setBool(&cfg.Dashboard.S3.UseSSL, "POLYARB_DASHBOARD_S3_USE_SSL")
	setBool(&cfg.Dashboard.S3.ForcePathStyle, "POLYARB_DASHBOARD_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYARB_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
