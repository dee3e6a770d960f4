// Package app wires configuration into a runnable engine: store, lock,
// venue adapters, detectors, executor, dashboard, and notifications.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkarlsen/polyarb/internal/cache/redis"
	"github.com/mkarlsen/polyarb/internal/config"
	"github.com/mkarlsen/polyarb/internal/dashboard"
	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/engine"
	"github.com/mkarlsen/polyarb/internal/executor"
	"github.com/mkarlsen/polyarb/internal/ledger"
	"github.com/mkarlsen/polyarb/internal/normalize"
	"github.com/mkarlsen/polyarb/internal/notify"
	"github.com/mkarlsen/polyarb/internal/platform/kalshi"
	"github.com/mkarlsen/polyarb/internal/platform/openmeteo"
	"github.com/mkarlsen/polyarb/internal/platform/polymarket"
	"github.com/mkarlsen/polyarb/internal/store/memory"
	"github.com/mkarlsen/polyarb/internal/store/postgres"
	"github.com/mkarlsen/polyarb/internal/strategy"
)

// App is the assembled engine plus everything that needs closing.
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	interval time.Duration
	logger   *slog.Logger
	closers  []func()
}

// New builds the application from config. Live mode requires PostgreSQL; a
// dry run without a configured database falls back to the in-memory ledger.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, interval: cfg.Engine.Interval.Duration, logger: logger}

	store, locker, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache domain.QuoteCache
	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			TLS:      cfg.Redis.TLS,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		cache = redis.NewQuoteCache(client, 2*cfg.Engine.Interval.Duration)
	}

	poly := polymarket.NewClient(cfg.Polymarket.GammaHost, cfg.Polymarket.ClobHost)
	sources := []domain.QuoteSource{poly}
	placers := map[domain.Venue]domain.OrderPlacer{
		domain.VenuePolymarket: poly,
	}
	if cfg.Kalshi.ApiKey != "" {
		ks := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey)
		sources = append(sources, ks)
		placers[domain.VenueKalshi] = ks
	}

	norm := normalize.New(cfg.Engine.MaxQuoteAge.Duration, logger)

	var (
		weather   *strategy.WeatherDetector
		forecasts domain.ForecastSource
		cities    []strategy.City
	)
	if cfg.Weather.Enabled {
		cities = make([]strategy.City, 0, len(cfg.Weather.Cities))
		for _, c := range cfg.Weather.Cities {
			cities = append(cities, strategy.City{
				Name: c.Name, Lat: c.Lat, Lon: c.Lon, Aliases: c.Aliases,
			})
		}
		weather = strategy.NewWeatherDetector(strategy.WeatherParams{
			MinEdge:        cfg.Weather.MinEdge,
			MinLiquidity:   cfg.Weather.MinLiquidity,
			MinHoursOut:    cfg.Weather.MinHoursOut,
			MaxHoursOut:    cfg.Weather.MaxHoursOut,
			ForecastMaxAge: cfg.Weather.ForecastMaxAge.Duration,
			Cities:         cities,
		}, norm, logger)
		forecasts = openmeteo.NewClient("")
	}

	var crossArb *strategy.CrossArbDetector
	if cfg.CrossArb.Enabled {
		fees := make(map[domain.Venue]float64, len(cfg.CrossArb.FeeBps))
		for venue, bps := range cfg.CrossArb.FeeBps {
			fees[domain.Venue(strings.ToLower(venue))] = bps
		}
		crossArb = strategy.NewCrossArbDetector(strategy.CrossArbParams{
			MinEdge:     cfg.CrossArb.MinEdge,
			FeeBps:      fees,
			SlippageBps: cfg.CrossArb.SlippageBps,
			MarketMap:   cfg.CrossArb.MarketMap,
		}, logger)
	}

	var publisher dashboard.Publisher
	var builder *dashboard.Builder
	if cfg.Dashboard.Enabled {
		builder = dashboard.NewBuilder(store, cfg.Mode)
		var pubs dashboard.MultiPublisher
		if cfg.Dashboard.Path != "" {
			pubs = append(pubs, dashboard.NewFilePublisher(cfg.Dashboard.Path))
		}
		if cfg.Dashboard.S3.Enabled {
			s3pub, err := dashboard.NewS3Publisher(ctx, dashboard.S3Config{
				Endpoint:       cfg.Dashboard.S3.Endpoint,
				Region:         cfg.Dashboard.S3.Region,
				Bucket:         cfg.Dashboard.S3.Bucket,
				Key:            cfg.Dashboard.S3.Key,
				AccessKey:      cfg.Dashboard.S3.AccessKey,
				SecretKey:      cfg.Dashboard.S3.SecretKey,
				UseSSL:         cfg.Dashboard.S3.UseSSL,
				ForcePathStyle: cfg.Dashboard.S3.ForcePathStyle,
			})
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("app: dashboard s3: %w", err)
			}
			pubs = append(pubs, s3pub)
		}
		if len(pubs) > 0 {
			publisher = pubs
		}
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	var notifier *notify.Notifier
	if len(senders) > 0 {
		notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	a.engine = engine.New(
		engine.Params{
			LockStaleAfter: cfg.Engine.LockStaleAfter.Duration,
			MaxSignals:     cfg.Engine.MaxSignals,
			ScanWorkers:    cfg.Engine.ScanWorkers,
			Limits:         cfg.Limits(),
		},
		engine.Deps{
			Store:     store,
			Locker:    locker,
			Sources:   sources,
			Forecasts: forecasts,
			Cities:    cities,
			Norm:      norm,
			Weather:   weather,
			CrossArb:  crossArb,
			Executor:  executor.New(cfg.DryRun(), placers, logger),
			Ledger:    ledger.New(logger),
			Cache:     cache,
			Dashboard: builder,
			Publisher: publisher,
			Notifier:  notifier,
		},
		logger,
	)
	return a, nil
}

// buildStore picks the durable PostgreSQL ledger, or the in-memory one for
// database-less dry runs.
func (a *App) buildStore(ctx context.Context) (domain.LedgerStore, domain.CycleLocker, error) {
	cfg := a.cfg
	if cfg.DryRun() && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		a.logger.Info("no database configured, using in-memory ledger")
		return memory.NewLedgerStore(cfg.Risk.InitialCapital), memory.NewCycleLock(), nil
	}

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: postgres: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	if err := client.RunMigrations(ctx); err != nil {
		return nil, nil, fmt.Errorf("app: migrations: %w", err)
	}
	return postgres.NewLedgerStore(client.Pool(), cfg.Risk.InitialCapital),
		postgres.NewCycleLock(client.Pool()), nil
}

// RunOnce executes a single cycle.
func (a *App) RunOnce(ctx context.Context) error {
	_, err := a.engine.RunCycle(ctx)
	return err
}

// Run executes cycles on the configured interval until the context ends. A
// failed cycle logs and waits for the next tick; the store's atomicity
// guarantees the next cycle starts from a coherent snapshot.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if _, err := a.engine.RunCycle(ctx); err != nil {
			a.logger.Error("cycle failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases all held resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
