package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/browser"
	"go-openclaw-scanner/internal/config"
	"go-openclaw-scanner/internal/database"
	"go-openclaw-scanner/internal/hook"
	"go-openclaw-scanner/internal/loader"
	"go-openclaw-scanner/internal/parser"
	"go-openclaw-scanner/internal/power"
	"go-openclaw-scanner/internal/scanner"
	"go-openclaw-scanner/internal/schedule"
	"go-openclaw-scanner/internal/settings"
	"go-openclaw-scanner/internal/telegram"
)

const shutdownTimeout = 2 * time.Minute

// app is the fully wired scanner with everything it needs to shut down.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	repo     *database.Repository
	rdb      *redis.Client
	pw       *browser.PlaywrightManager
	normal   *browser.Pool
	isolated *browser.Pool
	sched    *schedule.Scheduler
	bot      *telegram.Bot
	scanner  *scanner.Scanner
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.repo, err = database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("🗄️ Database connected")

	store := settings.NewStore(cfg.SettingsPath, logger)
	logger.Info().Str("path", store.Path()).Msg("⚙️ Settings file")

	deps := scanner.Deps{
		Links:    a.repo,
		Listings: a.repo,
		Sites:    a.repo,
		Settings: store,
		Power:    power.NewInhibitor(logger),
	}
	pc := parser.NewClient(cfg.ParserURL, cfg.ParserToken)
	deps.ListingExtractor, deps.DescriptionExtractor = pc, pc

	if cfg.RedisURL != "" {
		a.rdb, err = hook.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		deps.Hook = hook.NewPublisher(a.rdb, cfg.RedisChannel, logger)
		logger.Info().Msg("📮 Redis connected")
	} else {
		logger.Warn().Msg("⚠️ REDIS_URL not set, post-scan events disabled")
	}

	if cfg.TelegramEnabled() {
		a.bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, cfg.ListingsURL, logger)
		if err != nil {
			return nil, err
		}
		deps.Notifier, deps.View = a.bot, a.bot
		logger.Info().Msg("🤖 Telegram Bot initialized.")
	}

	a.sched = schedule.New(logger)
	deps.Scheduler = a.sched

	a.pw, err = browser.NewPlaywright(cfg.IsHeadless(), logger)
	if err != nil {
		return nil, err
	}

	cookies, skipped := browser.LoadCookieDir(cfg.CookiesPath)
	for name, cerr := range skipped {
		logger.Warn().Err(cerr).Str("file", name).Msg("⚠️ Could not load cookies. Continuing.")
	}
	logger.Info().Int("cookies", len(cookies)).Msg("🍪 Cookies loaded")

	if cfg.ScreenshotsDir != "" {
		if err := os.MkdirAll(cfg.ScreenshotsDir, 0755); err != nil {
			return nil, fmt.Errorf("create screenshots dir: %w", err)
		}
	}

	a.normal, err = browser.NewPool(ctx, browser.PoolConfig{
		Name: string(browser.PartitionNormal),
		Size: cfg.NormalPoolSize,
		Factory: a.pw.Factory(browser.SessionOptions{
			ProfilesDir: cfg.ProfilesPath,
			Partition:   browser.PartitionNormal,
			Cookies:     cookies,
		}),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	a.isolated, err = browser.NewPool(ctx, browser.PoolConfig{
		Name: string(browser.PartitionIsolated),
		Size: cfg.IsolatedPoolSize,
		Factory: a.pw.Factory(browser.SessionOptions{
			ProfilesDir: cfg.ProfilesPath,
			Partition:   browser.PartitionIsolated,
		}),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Int("normal", cfg.NormalPoolSize).Int("isolated", cfg.IsolatedPoolSize).Msg("✅ Browser pools ready")

	newLoader := func(p *browser.Pool) *loader.Loader {
		return loader.New(p, loader.Options{
			Navigation:    loader.DefaultNavigationPolicy(),
			Callback:      loader.DefaultCallbackPolicy(),
			Logger:        logger,
			ScreenshotDir: cfg.ScreenshotsDir,
		})
	}
	deps.Normal, deps.Isolated = newLoader(a.normal), newLoader(a.isolated)

	opts := scanner.DefaultOptions()
	opts.Logger = logger
	opts.BatchSize = cfg.BatchSize
	opts.ProcessingLimit = cfg.ProcessingLimit
	opts.ScanOnStart = cfg.ScanOnStart

	a.scanner, err = scanner.New(ctx, deps, opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close stops the engine first so no new loads start, then drains the pools
// and tears down the browser and connections.
func (a *app) Close() {
	if a.scanner != nil {
		if err := a.scanner.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("⚠️ Scanner close")
		}
	}
	if a.sched != nil {
		a.sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, p := range []*browser.Pool{a.normal, a.isolated} {
		if p == nil {
			continue
		}
		if err := p.Close(ctx); err != nil {
			a.logger.Warn().Err(err).Str("pool", p.Name()).Msg("⚠️ Pool close")
		}
	}
	if a.pw != nil {
		if err := a.pw.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("⚠️ Playwright stop")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
	a.logger.Info().Msg("🏁 Shutdown complete")
}
