package scanner_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"go-openclaw-scanner/internal/browser"
	"go-openclaw-scanner/internal/browser/browsertest"
	"go-openclaw-scanner/internal/loader"
	"go-openclaw-scanner/internal/models"
	"go-openclaw-scanner/internal/ports"
	"go-openclaw-scanner/internal/scanner"
	"go-openclaw-scanner/internal/settings"
)

type fakeLinks struct {
	mu       sync.Mutex
	links    []models.SearchLink
	listed   int
	failures map[string][]int
}

func (f *fakeLinks) ListLinks(ctx context.Context) ([]models.SearchLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	return append([]models.SearchLink(nil), f.links...), nil
}

func (f *fakeLinks) GetLink(ctx context.Context, id string) (models.SearchLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.ID == id {
			return l, nil
		}
	}
	return models.SearchLink{}, errors.New("link not found")
}

func (f *fakeLinks) IncreaseFailureCount(ctx context.Context, id string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string][]int)
	}
	f.failures[id] = append(f.failures[id], n)
	return nil
}

func (f *fakeLinks) Failures(id string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[id]
}

func (f *fakeLinks) Listed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

type fakeListings struct {
	processing []models.JobListing
	limit      int
}

func (f *fakeListings) ListProcessingListings(ctx context.Context, limit int) ([]models.JobListing, error) {
	f.limit = limit
	return append([]models.JobListing(nil), f.processing...), nil
}

type fakeSites []models.Site

func (f fakeSites) ListSites(ctx context.Context) ([]models.Site, error) {
	return f, nil
}

type extractFunc func(ctx context.Context, linkID, html string, maxRetries, retryCount int) (ports.ExtractResult, error)

func (f extractFunc) ExtractAndUpsertListings(ctx context.Context, linkID, html string, maxRetries, retryCount int) (ports.ExtractResult, error) {
	return f(ctx, linkID, html, maxRetries, retryCount)
}

type describeFunc func(ctx context.Context, listingID, html string, maxRetries, retryCount int) (ports.DescriptionResult, error)

func (f describeFunc) ExtractDescriptionAndFilter(ctx context.Context, listingID, html string, maxRetries, retryCount int) (ports.DescriptionResult, error) {
	return f(ctx, listingID, html, maxRetries, retryCount)
}

type hookCall struct {
	ids   []string
	email bool
}

type fakeHook struct {
	mu    sync.Mutex
	calls []hookCall
	err   error
}

func (f *fakeHook) RunPostScanHook(ctx context.Context, ids []string, email bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hookCall{ids: ids, email: email})
	return f.err
}

type fakeTrigger struct {
	expr    string
	fn      func()
	stopped int
}

func (t *fakeTrigger) Stop() { t.stopped++ }

type fakeScheduler struct {
	triggers []*fakeTrigger
}

func (f *fakeScheduler) Schedule(expr string, fn func()) (ports.Trigger, error) {
	if expr == "not a cron" {
		return nil, errors.New("invalid expression")
	}
	t := &fakeTrigger{expr: expr, fn: fn}
	f.triggers = append(f.triggers, t)
	return t, nil
}

type fakeSleepHandle struct{ released int }

func (h *fakeSleepHandle) Release() error {
	h.released++
	return nil
}

type fakePower struct {
	handles []*fakeSleepHandle
}

func (f *fakePower) Prevent() (ports.SleepHandle, error) {
	h := &fakeSleepHandle{}
	f.handles = append(f.handles, h)
	return h, nil
}

type fakeNotificationHandle struct{ closed int }

func (h *fakeNotificationHandle) Close() error {
	h.closed++
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []ports.Notification
	last  *fakeNotificationHandle
}

func (f *fakeNotifier) Show(ctx context.Context, n ports.Notification) (ports.NotificationHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	f.last = &fakeNotificationHandle{}
	return f.last, nil
}

type fakeView struct{ opened int }

func (f *fakeView) OpenListings(ctx context.Context) error {
	f.opened++
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) CountOver(min time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.sleeps {
		if d >= min {
			n++
		}
	}
	return n
}

type env struct {
	scanner   *scanner.Scanner
	links     *fakeLinks
	listings  *fakeListings
	hook      *fakeHook
	scheduler *fakeScheduler
	power     *fakePower
	notifier  *fakeNotifier
	view      *fakeView
	store     *settings.Store
	normal    *browser.Pool
	isolated  *browser.Pool
	sleeps    *sleepRecorder
}

type envConfig struct {
	normal, isolated         *browsertest.Browser
	normalSize, isolatedSize int
	sites                    fakeSites
	extract                  extractFunc
	describe                 describeFunc
	batchSize                int
	initial                  *models.ScannerSettings
}

func newEnv(t *testing.T, cfg envConfig) *env {
	t.Helper()
	ctx := context.Background()

	if cfg.normalSize == 0 {
		cfg.normalSize = 2
	}
	if cfg.isolatedSize == 0 {
		cfg.isolatedSize = 1
	}
	if cfg.isolated == nil {
		cfg.isolated = browsertest.Static(browsertest.Page{Status: 200})
	}

	rec := &sleepRecorder{}
	nav := loader.DefaultNavigationPolicy()
	nav.BaseDelay, nav.MaxDelay = time.Millisecond, 2*time.Millisecond
	cb := loader.DefaultCallbackPolicy()
	cb.BaseDelay, cb.MaxDelay = time.Millisecond, 2*time.Millisecond

	newLoader := func(name string, b *browsertest.Browser, size int) (*browser.Pool, *loader.Loader) {
		p, err := browser.NewPool(ctx, browser.PoolConfig{Name: name, Size: size, Factory: b.Factory(), Logger: zerolog.Nop()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		return p, loader.New(p, loader.Options{Navigation: nav, Callback: cb, Logger: zerolog.Nop(), Sleep: rec.Sleep})
	}
	normalPool, normalLoader := newLoader("normal", cfg.normal, cfg.normalSize)
	isolatedPool, isolatedLoader := newLoader("isolated", cfg.isolated, cfg.isolatedSize)

	e := &env{
		links:     &fakeLinks{},
		listings:  &fakeListings{},
		hook:      &fakeHook{},
		scheduler: &fakeScheduler{},
		power:     &fakePower{},
		notifier:  &fakeNotifier{},
		view:      &fakeView{},
		store:     settings.NewStore(filepath.Join(t.TempDir(), settings.FileName), zerolog.Nop()),
		normal:    normalPool,
		isolated:  isolatedPool,
		sleeps:    rec,
	}

	if cfg.initial != nil {
		require.NoError(t, e.store.Save(*cfg.initial))
	}

	extract := cfg.extract
	if extract == nil {
		extract = func(ctx context.Context, linkID, html string, maxRetries, retryCount int) (ports.ExtractResult, error) {
			return ports.ExtractResult{}, nil
		}
	}
	describe := cfg.describe
	if describe == nil {
		describe = func(ctx context.Context, id, html string, maxRetries, retryCount int) (ports.DescriptionResult, error) {
			return ports.DescriptionResult{Listing: models.JobListing{ID: id, Status: models.StatusNew}}, nil
		}
	}

	opts := scanner.DefaultOptions()
	opts.Sleep = rec.Sleep
	if cfg.batchSize > 0 {
		opts.BatchSize = cfg.batchSize
	}

	s, err := scanner.New(ctx, scanner.Deps{
		Links:                e.links,
		Listings:             e.listings,
		Sites:                cfg.sites,
		ListingExtractor:     extract,
		DescriptionExtractor: describe,
		Hook:                 e.hook,
		Scheduler:            e.scheduler,
		Power:                e.power,
		Notifier:             e.notifier,
		View:                 e.view,
		Settings:             e.store,
		Normal:               normalLoader,
		Isolated:             isolatedLoader,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	e.scanner = s
	return e
}
