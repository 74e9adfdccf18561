// Package browsertest provides scripted in-memory browser sessions.
package browsertest

import (
	"context"
	"sync"

	"go-openclaw-scanner/internal/browser"
)

// Page is what the fake browser shows after a navigation.
type Page struct {
	Status int
	Title  string
	// FinalURL is the URL after redirects; empty means the requested URL.
	FinalURL string
	HTML     string
	Err      error
}

// HandlerFunc scripts the response for the visit-th (1-based) navigation to url.
type HandlerFunc func(url string, visit int) Page

// Browser is a set of fake sessions sharing one script.
type Browser struct {
	handler HandlerFunc

	mu       sync.Mutex
	visits   map[string]int
	sessions []*Session
}

func New(h HandlerFunc) *Browser {
	return &Browser{handler: h, visits: make(map[string]int)}
}

// Static serves the same page for every URL.
func Static(p Page) *Browser {
	return New(func(string, int) Page { return p })
}

// Factory builds sessions for a browser.Pool.
func (b *Browser) Factory() browser.SessionFactory {
	return func(ctx context.Context, slotID int) (browser.Session, error) {
		s := &Session{ID: slotID, browser: b}
		b.mu.Lock()
		b.sessions = append(b.sessions, s)
		b.mu.Unlock()
		return s, nil
	}
}

// Visits reports how many navigations hit url.
func (b *Browser) Visits(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visits[url]
}

func (b *Browser) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, len(b.sessions))
	copy(out, b.sessions)
	return out
}

func (b *Browser) visit(url string) Page {
	b.mu.Lock()
	b.visits[url]++
	n := b.visits[url]
	b.mu.Unlock()
	return b.handler(url, n)
}

// Session is a fake browser.Session.
type Session struct {
	ID      int
	browser *Browser

	mu      sync.Mutex
	page    Page
	url     string
	scrolls int
	closed  bool
	shots   []string
}

func (s *Session) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := s.browser.visit(url)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = p
	s.url = url
	if p.FinalURL != "" {
		s.url = p.FinalURL
	}
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Status, nil
}

func (s *Session) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Title, nil
}

func (s *Session) ScrollToBottom() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
	return nil
}

func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.HTML, nil
}

func (s *Session) Screenshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots = append(s.shots, path)
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}
