package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is one headless browser tab bound to its own storage partition.
type Session interface {
	// Navigate loads url and returns the HTTP status of the main response
	// (0 when the browser reports none).
	Navigate(ctx context.Context, url string) (int, error)
	Title() (string, error)
	// ScrollToBottom smooth-scrolls every scrollable element to its end.
	ScrollToBottom() error
	// URL is the current, possibly redirected, location.
	URL() string
	HTML() (string, error)
	Screenshot(path string) error
	Close() error
}

const navigationTimeout = 60 * time.Second

type playwrightSession struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

func newPlaywrightSession(bctx playwright.BrowserContext) (*playwrightSession, error) {
	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		p, err := bctx.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		page = p
	}
	return &playwrightSession{bctx: bctx, page: page}, nil
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(navigationTimeout.Milliseconds())),
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (s *playwrightSession) Title() (string, error) {
	return s.page.Title()
}

func (s *playwrightSession) ScrollToBottom() error {
	_, err := s.page.Evaluate(scrollScript)
	return err
}

func (s *playwrightSession) URL() string {
	return s.page.URL()
}

func (s *playwrightSession) HTML() (string, error) {
	return s.page.Content()
}

func (s *playwrightSession) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (s *playwrightSession) Close() error {
	err := s.bctx.Close()
	if errors.Is(err, playwright.ErrTargetClosed) {
		return nil
	}
	return err
}
