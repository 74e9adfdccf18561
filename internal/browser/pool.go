package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/gate"
)

var (
	// ErrNoSessionAvailable means the gate admitted a caller but every slot
	// was checked out. Gate concurrency equals pool size, so this is a bug.
	ErrNoSessionAvailable = errors.New("no browser session available")
	ErrPoolClosed         = errors.New("browser pool closed")
)

// SessionFactory creates the session for one slot.
type SessionFactory func(ctx context.Context, slotID int) (Session, error)

type PoolConfig struct {
	Name        string
	Size        int
	Factory     SessionFactory
	GracePeriod time.Duration
	Logger      zerolog.Logger
}

type slot struct {
	id        int
	session   Session
	available bool
}

// Pool owns a fixed set of sessions and hands them out one caller at a time.
type Pool struct {
	name   string
	gate   *gate.Gate
	grace  time.Duration
	logger zerolog.Logger

	mu        sync.Mutex
	slots     []*slot
	inUse     int
	closed    bool
	destroyed bool
}

// NewPool creates every session up front.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("pool %s: size must be at least 1, got %d", cfg.Name, cfg.Size)
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("pool %s: session factory is required", cfg.Name)
	}
	grace := cfg.GracePeriod
	if grace < 0 {
		grace = 0
	}

	p := &Pool{
		name:   cfg.Name,
		gate:   gate.New(cfg.Size),
		grace:  grace,
		logger: cfg.Logger.With().Str("component", "pool").Str("pool", cfg.Name).Logger(),
		slots:  make([]*slot, 0, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		s, err := cfg.Factory(ctx, i)
		if err != nil {
			p.closeSessions()
			return nil, fmt.Errorf("pool %s: create session %d: %w", cfg.Name, i, err)
		}
		p.slots = append(p.slots, &slot{id: i, session: s, available: true})
	}

	p.logger.Info().Int("size", cfg.Size).Msg("🌐 Browser pool ready")
	return p, nil
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return p.gate.Limit() }

// InUse is the number of sessions currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// UseSession checks out a session, runs fn with it and always checks it back
// in, even when fn fails or panics.
func UseSession[T any](ctx context.Context, p *Pool, fn func(ctx context.Context, s Session) (T, error)) (T, error) {
	var zero T
	if p.isClosed() {
		return zero, ErrPoolClosed
	}

	return gate.Run(ctx, p.gate, func(ctx context.Context) (T, error) {
		sl, err := p.acquire()
		if err != nil {
			return zero, err
		}
		defer p.release(sl)

		return fn(ctx, sl.session)
	})
}

func (p *Pool) acquire() (*slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	for _, sl := range p.slots {
		if sl.available {
			sl.available = false
			p.inUse++
			return sl, nil
		}
	}
	return nil, fmt.Errorf("pool %s: %w", p.name, ErrNoSessionAvailable)
}

func (p *Pool) release(sl *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sl.available = true
	p.inUse--
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close waits until no session is checked out, destroys every session and
// then waits the grace period for native teardown to settle.
func (p *Pool) Close(ctx context.Context) error {
	// Refuse new checkouts first; anything the gate admits from now on fails
	// in acquire without touching a slot.
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if err := p.gate.Wait(ctx); err != nil {
		return fmt.Errorf("pool %s: wait for sessions: %w", p.name, err)
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.mu.Unlock()

	err := p.closeSessions()
	p.logger.Info().Msg("🛑 Browser pool closed")

	if serr := Sleep(ctx, p.grace); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (p *Pool) closeSessions() error {
	var errs []error
	for _, sl := range p.slots {
		if err := sl.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %d: %w", sl.id, err))
		}
	}
	return errors.Join(errs...)
}
