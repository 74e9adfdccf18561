// Package loader turns a URL into rendered HTML while coping with rate
// limits, challenge pages and login walls.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"go-openclaw-scanner/internal/browser"
)

var (
	challengeTitlePrefixes = []string{"just a moment"}
	authWallMarkers        = []string{"authwall", "login"}
)

type Options struct {
	Navigation NavigationPolicy
	Callback   Policy
	Logger     zerolog.Logger
	// Sleep waits out cooldowns and scroll pauses. Defaults to browser.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// ScreenshotDir enables a debug screenshot on rate limits and auth walls.
	ScreenshotDir string
}

type Loader struct {
	pool   *browser.Pool
	nav    NavigationPolicy
	cb     Policy
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	shots  string
}

func New(pool *browser.Pool, opts Options) *Loader {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = browser.Sleep
	}
	return &Loader{
		pool:   pool,
		nav:    opts.Navigation,
		cb:     opts.Callback,
		logger: opts.Logger.With().Str("component", "loader").Str("pool", pool.Name()).Logger(),
		sleep:  sleep,
		shots:  opts.ScreenshotDir,
	}
}

type Request struct {
	URL          string
	ScrollPasses int
}

// Document is the rendered page handed to a load callback.
type Document struct {
	HTML       string
	MaxRetries int
	RetryCount int
}

// Load checks out a session, navigates to req.URL with retries and then runs
// cb on the rendered page under the callback retry policy. The session is
// released once cb has finished. If ctx is already done nothing is loaded and
// ErrStopped is returned.
func Load[T any](ctx context.Context, l *Loader, req Request, cb func(ctx context.Context, doc Document) (T, error)) (T, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, ErrStopped
	}

	out, err := browser.UseSession(ctx, l.pool, func(ctx context.Context, s browser.Session) (T, error) {
		if err := l.navigate(ctx, s, req); err != nil {
			return zero, err
		}
		return runCallback(ctx, l, s, req, cb)
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrStopped) {
		return zero, fmt.Errorf("%w: %w", ErrStopped, err)
	}
	return out, err
}

func (l *Loader) navigate(ctx context.Context, s browser.Session, req Request) error {
	maxAuthWalls := l.nav.AuthWallAttempts
	if maxAuthWalls <= 0 {
		maxAuthWalls = l.nav.Attempts
	}
	authWalls := 0

	opts := append(l.nav.options(),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			if !retryable(ctx, err) {
				return false
			}
			if KindOf(err) == KindAuthWall {
				authWalls++
				return authWalls < maxAuthWalls
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			l.logAttempt(req.URL, n, err)
		}),
	)

	return retry.Do(func() error {
		return l.attempt(ctx, s, req)
	}, opts...)
}

func (l *Loader) attempt(ctx context.Context, s browser.Session, req Request) error {
	status, err := s.Navigate(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationError{Kind: KindTransient, URL: req.URL, Status: status, Err: err}
	}

	title, err := s.Title()
	if err != nil {
		return &NavigationError{Kind: KindTransient, URL: req.URL, Status: status, Err: fmt.Errorf("read title: %w", err)}
	}

	if status == 429 || l.isChallenge(title) {
		l.capture(s, KindRateLimited)
		cooldown := browser.RandomDuration(l.nav.CooldownMin, l.nav.CooldownMax)
		l.logger.Warn().Str("url", req.URL).Int("status", status).Str("title", title).
			Dur("cooldown", cooldown).Msg("🚨 Rate limited, cooling down")
		if err := l.sleep(ctx, cooldown); err != nil {
			return err
		}
		return &NavigationError{Kind: KindRateLimited, URL: req.URL, Status: status, Cooldown: cooldown}
	}

	passes := req.ScrollPasses
	if passes < 0 {
		passes = 0
	}
	for i := 0; i < passes; i++ {
		if err := s.ScrollToBottom(); err != nil {
			return &NavigationError{Kind: KindTransient, URL: req.URL, Status: status, Err: fmt.Errorf("scroll: %w", err)}
		}
		if err := l.sleep(ctx, l.nav.ScrollPause); err != nil {
			return err
		}
		if isAuthWall(s.URL()) {
			l.capture(s, KindAuthWall)
			return &NavigationError{Kind: KindAuthWall, URL: req.URL, Status: status}
		}
	}
	if passes == 0 && isAuthWall(s.URL()) {
		return &NavigationError{Kind: KindAuthWall, URL: req.URL, Status: status}
	}
	return nil
}

func runCallback[T any](ctx context.Context, l *Loader, s browser.Session, req Request, cb func(ctx context.Context, doc Document) (T, error)) (T, error) {
	var out T
	maxRetries := l.cb.Retries()
	attempt := 0

	err := retry.Do(func() error {
		html, err := s.HTML()
		if err != nil {
			return fmt.Errorf("read page content: %w", err)
		}
		doc := Document{HTML: html, MaxRetries: maxRetries, RetryCount: attempt}
		attempt++

		v, err := cb(ctx, doc)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, append(l.cb.options(),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool { return retryable(ctx, err) }),
		retry.OnRetry(func(n uint, err error) {
			l.logger.Warn().Err(err).Str("url", req.URL).Uint("retry", n+1).Msg("⚠️ Page callback failed, retrying")
		}),
	)...)
	return out, err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, browser.ErrNoSessionAvailable) || errors.Is(err, browser.ErrPoolClosed) {
		return false
	}
	return retry.IsRecoverable(err)
}

// isChallenge matches interstitial anti-bot pages by title. A Caser is
// stateful, so each call folds with its own.
func (l *Loader) isChallenge(title string) bool {
	folded := cases.Fold().String(strings.TrimSpace(title))
	for _, prefix := range challengeTitlePrefixes {
		if strings.HasPrefix(folded, prefix) {
			return true
		}
	}
	return false
}

func isAuthWall(url string) bool {
	lower := strings.ToLower(url)
	for _, m := range authWallMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (l *Loader) logAttempt(url string, n uint, err error) {
	ev := l.logger.Warn()
	switch KindOf(err) {
	case KindRateLimited:
		ev = ev.Str("category", "rate_limit")
	case KindAuthWall:
		ev = ev.Str("category", "auth_wall")
	default:
		ev = ev.Str("category", "navigation")
	}
	ev.Err(err).Str("url", url).Uint("attempt", n+1).Int("max_attempts", l.nav.Attempts).Msg("🔁 Navigation attempt failed")
}

func (l *Loader) capture(s browser.Session, kind Kind) {
	if l.shots == "" {
		return
	}
	name := fmt.Sprintf("%s-%s_%s.png", l.pool.Name(), kind, time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(l.shots, name)
	if err := s.Screenshot(path); err != nil {
		l.logger.Warn().Err(err).Msg("⚠️ Failed to capture screenshot")
		return
	}
	l.logger.Info().Str("path", path).Msg("📸 Screenshot saved")
}
