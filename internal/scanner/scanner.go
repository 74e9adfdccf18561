// Package scanner is the scan engine: it schedules scan cycles, fans page
// loads out over the browser pools and reconciles results into listings.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/browser"
	"go-openclaw-scanner/internal/loader"
	"go-openclaw-scanner/internal/models"
	"go-openclaw-scanner/internal/ports"
	"go-openclaw-scanner/internal/settings"
)

// ErrParseFailed is raised from a load callback when an extractor reports
// content it could not parse, so the loader's callback retry kicks in.
var ErrParseFailed = errors.New("page parse failed")

// ErrClosed is returned by Start once the engine has been closed.
var ErrClosed = errors.New("scanner closed")

// Deps are the collaborators the engine drives.
type Deps struct {
	Links                ports.LinkStore
	Listings             ports.ListingStore
	Sites                ports.SiteRegistry
	ListingExtractor     ports.ListingExtractor
	DescriptionExtractor ports.DescriptionExtractor
	Hook                 ports.PostScanHook
	Scheduler            ports.Scheduler
	Power                ports.SleepPreventer
	Notifier             ports.Notifier
	View                 ports.ListingsView
	Settings             *settings.Store

	Normal *loader.Loader
	// Isolated serves sites that need a clean partition. Nil falls back to Normal.
	Isolated *loader.Loader
}

type Options struct {
	Logger zerolog.Logger

	LinkScrollPasses int
	JobScrollPasses  int
	BatchSize        int
	ProcessingLimit  int
	LinkDelayMin     time.Duration
	LinkDelayMax     time.Duration
	JobDelayMin      time.Duration
	JobDelayMax      time.Duration
	ScanOnStart      bool

	// Sleep paces requests. Defaults to browser.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultOptions() Options {
	return Options{
		Logger:           zerolog.Nop(),
		LinkScrollPasses: 5,
		JobScrollPasses:  1,
		BatchSize:        10,
		ProcessingLimit:  300,
		LinkDelayMin:     time.Second,
		LinkDelayMax:     4 * time.Second,
		JobDelayMin:      300 * time.Millisecond,
		JobDelayMax:      time.Second,
	}
}

type Scanner struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	// runCtx is the engine's running flag; Close cancels it.
	runCtx    context.Context
	stop      context.CancelFunc
	closeOnce sync.Once

	mu            sync.Mutex
	runs          int
	settings      models.ScannerSettings
	trigger       ports.Trigger
	sleepHandle   ports.SleepHandle
	notifications map[string]ports.NotificationHandle

	// settingsMu serialises Start, UpdateSettings and Close.
	settingsMu sync.Mutex
	started    bool
}

// New builds the engine and loads persisted settings. Nothing is scheduled
// until Start.
func New(ctx context.Context, deps Deps, opts Options) (*Scanner, error) {
	if deps.Normal == nil {
		return nil, errors.New("scanner: normal loader is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("scanner: settings store is required")
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = browser.Sleep
	}
	logger := opts.Logger.With().Str("component", "scanner").Logger()

	current, err := deps.Settings.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️ Could not load settings, using defaults")
	}

	runCtx, stop := context.WithCancel(ctx)
	return &Scanner{
		deps:          deps,
		opts:          opts,
		logger:        logger,
		sleep:         sleep,
		runCtx:        runCtx,
		stop:          stop,
		settings:      current,
		notifications: make(map[string]ports.NotificationHandle),
	}, nil
}

// Start applies the loaded settings: registers the schedule and takes the
// sleep-prevention handle when enabled. Later calls are no-ops.
func (s *Scanner) Start() error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if !s.Running() {
		return ErrClosed
	}
	if s.started {
		return nil
	}

	current := s.Settings()
	if err := s.applySettings(models.ScannerSettings{}, current); err != nil {
		return err
	}
	s.started = true
	s.logger.Info().Str("schedule", current.ScheduleExpr()).Bool("prevent_sleep", current.PreventSleep).Msg("🚀 Scanner started")

	if s.opts.ScanOnStart {
		go func() {
			if err := s.ScanAllLinks(s.runCtx); err != nil {
				s.logger.Error().Err(err).Msg("❌ Startup scan failed")
			}
		}()
	}
	return nil
}

// Running reports whether the engine has not been closed.
func (s *Scanner) Running() bool {
	return s.runCtx.Err() == nil
}

// IsScanning reports whether any scan is in flight.
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs > 0
}

// Settings returns a copy of the current settings.
func (s *Scanner) Settings() models.ScannerSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// Close stops scheduling, releases sleep prevention and flips the running
// flag so in-flight loads stop retrying. It does not wait for them.
func (s *Scanner) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.settingsMu.Lock()
		defer s.settingsMu.Unlock()
		s.stop()

		s.mu.Lock()
		trigger, handle := s.trigger, s.sleepHandle
		s.trigger, s.sleepHandle = nil, nil
		s.mu.Unlock()

		if trigger != nil {
			trigger.Stop()
		}
		if handle != nil {
			if rerr := handle.Release(); rerr != nil {
				err = fmt.Errorf("release sleep prevention: %w", rerr)
			}
		}
		s.logger.Info().Msg("🛑 Scanner closed")
	})
	return err
}

// tryBeginCycle takes the main-cycle slot if no scan is running.
func (s *Scanner) tryBeginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs > 0 {
		return false
	}
	s.runs++
	return true
}

func (s *Scanner) beginRun() {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
}

func (s *Scanner) endRun() {
	s.mu.Lock()
	s.runs--
	s.mu.Unlock()
}

// scope derives a context that ends when either ctx or the engine ends.
func (s *Scanner) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if s.runCtx.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stopAfter := context.AfterFunc(s.runCtx, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}
}

func (s *Scanner) pause(ctx context.Context, min, max time.Duration) {
	_ = s.sleep(ctx, browser.RandomDuration(min, max))
}
