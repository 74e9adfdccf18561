package loader_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-openclaw-scanner/internal/browser"
	"go-openclaw-scanner/internal/browser/browsertest"
	"go-openclaw-scanner/internal/loader"
)

const jobsURL = "https://www.linkedin.com/jobs/search/?keywords=golang"

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

func (r *sleepRecorder) Over(min time.Duration) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Duration
	for _, d := range r.sleeps {
		if d >= min {
			out = append(out, d)
		}
	}
	return out
}

func fastPolicies(attempts int) (loader.NavigationPolicy, loader.Policy) {
	nav := loader.DefaultNavigationPolicy()
	nav.Attempts = attempts
	nav.BaseDelay = time.Millisecond
	nav.MaxDelay = 2 * time.Millisecond

	cb := loader.DefaultCallbackPolicy()
	cb.BaseDelay = time.Millisecond
	cb.MaxDelay = 2 * time.Millisecond
	return nav, cb
}

func newLoader(t *testing.T, fake *browsertest.Browser, nav loader.NavigationPolicy, cb loader.Policy) (*loader.Loader, *sleepRecorder) {
	t.Helper()
	pool, err := browser.NewPool(context.Background(), browser.PoolConfig{
		Name: "normal", Size: 1, Factory: fake.Factory(), Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	rec := &sleepRecorder{}
	l := loader.New(pool, loader.Options{
		Navigation: nav,
		Callback:   cb,
		Logger:     zerolog.Nop(),
		Sleep:      rec.Sleep,
	})
	return l, rec
}

func htmlOf(_ context.Context, doc loader.Document) (string, error) {
	return doc.HTML, nil
}

func TestLoad_Success(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{Status: 200, Title: "Jobs", HTML: "<ul>jobs</ul>"})
	nav, cb := fastPolicies(20)
	l, rec := newLoader(t, fake, nav, cb)

	html, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL, ScrollPasses: 5}, htmlOf)

	require.NoError(t, err)
	assert.Equal(t, "<ul>jobs</ul>", html)
	assert.Equal(t, 1, fake.Visits(jobsURL))
	assert.Equal(t, 5, fake.Sessions()[0].Scrolls())
	assert.Len(t, rec.Over(2*time.Second), 5, "one pause per scroll pass")
}

func TestLoad_RateLimitedOnceThenSucceeds(t *testing.T) {
	fake := browsertest.New(func(url string, visit int) browsertest.Page {
		if visit == 1 {
			return browsertest.Page{Status: 429, Title: "Too Many Requests"}
		}
		return browsertest.Page{Status: 200, Title: "Jobs", HTML: "<p>ok</p>"}
	})
	nav, cb := fastPolicies(20)
	l, rec := newLoader(t, fake, nav, cb)

	html, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL, ScrollPasses: 1}, htmlOf)

	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", html)
	assert.Equal(t, 2, fake.Visits(jobsURL))

	cooldowns := rec.Over(20 * time.Second)
	require.Len(t, cooldowns, 1)
	assert.LessOrEqual(t, cooldowns[0], 40*time.Second)
}

func TestLoad_ChallengePageIsRateLimited(t *testing.T) {
	fake := browsertest.New(func(url string, visit int) browsertest.Page {
		if visit == 1 {
			return browsertest.Page{Status: 403, Title: "Just a moment..."}
		}
		return browsertest.Page{Status: 200, HTML: "<p>ok</p>"}
	})
	nav, cb := fastPolicies(20)
	l, rec := newLoader(t, fake, nav, cb)

	_, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL}, htmlOf)

	require.NoError(t, err)
	assert.Len(t, rec.Over(20*time.Second), 1)
}

func TestLoad_AuthWallExhaustsAttempts(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{
		Status:   200,
		FinalURL: "https://www.linkedin.com/authwall?trk=jobs",
	})
	nav, cb := fastPolicies(3)
	l, _ := newLoader(t, fake, nav, cb)

	called := false
	_, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL, ScrollPasses: 2}, func(ctx context.Context, doc loader.Document) (string, error) {
		called = true
		return "", nil
	})

	require.Error(t, err)
	assert.Equal(t, loader.KindAuthWall, loader.KindOf(err))
	assert.Equal(t, 3, fake.Visits(jobsURL))
	assert.False(t, called)
}

func TestLoad_AuthWallAttemptCap(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{Status: 200, FinalURL: "https://example.com/login"})
	nav, cb := fastPolicies(20)
	nav.AuthWallAttempts = 1
	l, _ := newLoader(t, fake, nav, cb)

	_, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL, ScrollPasses: 1}, htmlOf)

	var nerr *loader.NavigationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, loader.KindAuthWall, nerr.Kind)
	assert.Equal(t, 1, fake.Visits(jobsURL))
}

func TestLoad_CallbackRetriedOnce(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{Status: 200, HTML: "<p>job</p>"})
	nav, cb := fastPolicies(20)
	l, _ := newLoader(t, fake, nav, cb)

	var docs []loader.Document
	out, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL}, func(ctx context.Context, doc loader.Document) (int, error) {
		docs = append(docs, doc)
		if doc.RetryCount == 0 {
			return 0, errors.New("parse failed")
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, out)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].MaxRetries)
	assert.Equal(t, 0, docs[0].RetryCount)
	assert.Equal(t, 1, docs[1].RetryCount)
	assert.Equal(t, 1, fake.Visits(jobsURL), "callback retries do not navigate again")
}

func TestLoad_CallbackExhausted(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{Status: 200})
	nav, cb := fastPolicies(20)
	l, _ := newLoader(t, fake, nav, cb)

	boom := errors.New("parse failed")
	calls := 0
	_, err := loader.Load(context.Background(), l, loader.Request{URL: jobsURL}, func(ctx context.Context, doc loader.Document) (int, error) {
		calls++
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestLoad_StoppedBeforeEntry(t *testing.T) {
	fake := browsertest.Static(browsertest.Page{Status: 200})
	nav, cb := fastPolicies(20)
	l, _ := newLoader(t, fake, nav, cb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, l, loader.Request{URL: jobsURL}, htmlOf)

	assert.ErrorIs(t, err, loader.ErrStopped)
	assert.Equal(t, 0, fake.Visits(jobsURL))
}

func TestLoad_StopDuringCooldownDoesNotRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := browsertest.New(func(url string, visit int) browsertest.Page {
		cancel()
		return browsertest.Page{Status: 429}
	})
	nav, cb := fastPolicies(20)
	l, _ := newLoader(t, fake, nav, cb)

	_, err := loader.Load(ctx, l, loader.Request{URL: jobsURL}, htmlOf)

	assert.ErrorIs(t, err, loader.ErrStopped)
	assert.Equal(t, 1, fake.Visits(jobsURL))
}

func TestNavigationError_Messages(t *testing.T) {
	rl := &loader.NavigationError{Kind: loader.KindRateLimited, URL: "u", Status: 429, Cooldown: 25 * time.Second}
	assert.Contains(t, rl.Error(), "rate limited")
	assert.Equal(t, "rate_limited", rl.Kind.String())

	inner := errors.New("net::ERR_CONNECTION_RESET")
	tr := &loader.NavigationError{Kind: loader.KindTransient, URL: "u", Err: inner}
	assert.ErrorIs(t, tr, inner)
	assert.Equal(t, loader.KindTransient, loader.KindOf(errors.New("other")))
}
