package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Partition names the storage partition family a pool's sessions live in.
type Partition string

const (
	PartitionNormal   Partition = "scraper"
	PartitionIsolated Partition = "isolated-scraper"
)

type PlaywrightManager struct {
	pw       *playwright.Playwright
	headless bool
	logger   zerolog.Logger
}

func NewPlaywright(headless bool, logger zerolog.Logger) (*PlaywrightManager, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	return &PlaywrightManager{
		pw:       pw,
		headless: headless,
		logger:   logger.With().Str("component", "browser").Logger(),
	}, nil
}

// SessionOptions configures sessions created by Factory.
type SessionOptions struct {
	ProfilesDir string
	Partition   Partition
	Cookies     []playwright.OptionalCookie
	Blocker     RequestBlocker
}

// Factory returns a SessionFactory that launches one persistent Chromium
// context per slot, each with its own profile directory.
func (pm *PlaywrightManager) Factory(opts SessionOptions) SessionFactory {
	blocker := opts.Blocker
	if blocker == nil {
		blocker = BlockPasskeyRequests
	}

	return func(ctx context.Context, slotID int) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(opts.ProfilesDir, fmt.Sprintf("persist-%s-%d", opts.Partition, slotID))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create profile directory: %w", err)
		}

		bctx, err := pm.pw.Chromium.LaunchPersistentContext(dir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(pm.headless),
			Args:     []string{"--disable-blink-features=AutomationControlled"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch context %s: %w", dir, err)
		}

		if len(opts.Cookies) > 0 {
			if err := bctx.AddCookies(opts.Cookies); err != nil {
				pm.logger.Warn().Err(err).Int("slot", slotID).Msg("⚠️ Could not seed cookies. Continuing.")
			}
		}

		err = bctx.Route("**/*", func(route playwright.Route) {
			if blocker(route.Request().URL()) {
				pm.logger.Debug().Str("url", route.Request().URL()).Msg("🚫 Dropped passkey request")
				_ = route.Abort()
				return
			}
			_ = route.Continue()
		})
		if err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("failed to install request route: %w", err)
		}

		session, err := newPlaywrightSession(bctx)
		if err != nil {
			_ = bctx.Close()
			return nil, err
		}
		return session, nil
	}
}

func (pm *PlaywrightManager) Close() error {
	if pm.pw == nil {
		return nil
	}
	return pm.pw.Stop()
}
