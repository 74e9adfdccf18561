package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"go-openclaw-scanner/internal/browser"
	"go-openclaw-scanner/internal/loader"
	"go-openclaw-scanner/internal/models"
)

// Result summarises one ScanLinks call.
type Result struct {
	// ByLink holds the listings each link's extractor reported as new.
	ByLink map[string][]models.JobListing
	// FailedLinks are links whose page could not be loaded or parsed.
	FailedLinks []string
	// NewListings are listings that ended the enrichment pass as new.
	NewListings []models.JobListing
}

// ScanAllLinks runs one full scan cycle over every configured link. It does
// nothing if a scan is already in flight.
func (s *Scanner) ScanAllLinks(ctx context.Context) error {
	if !s.tryBeginCycle() {
		s.logger.Info().Msg("⏭️ Scan already in progress, skipping")
		return nil
	}
	defer s.endRun()

	ctx, cancel := s.scope(ctx)
	defer cancel()

	links, err := s.deps.Links.ListLinks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("❌ Failed to list search links")
		return fmt.Errorf("list links: %w", err)
	}

	_, err = s.scanLinks(ctx, links, true)
	return err
}

// ScanLinks scans links concurrently, then enriches every pending listing.
// A failing link never blocks the others; only a broken session pool aborts
// the call.
func (s *Scanner) ScanLinks(ctx context.Context, links []models.SearchLink, notify bool) (*Result, error) {
	s.beginRun()
	defer s.endRun()

	ctx, cancel := s.scope(ctx)
	defer cancel()

	return s.scanLinks(ctx, links, notify)
}

// ScanLink scans a single link by id. Failures are logged, not returned.
func (s *Scanner) ScanLink(ctx context.Context, linkID string) {
	link, err := s.deps.Links.GetLink(ctx, linkID)
	if err != nil {
		s.logger.Error().Err(err).Str("link_id", linkID).Msg("❌ Could not load link for manual scan")
		return
	}
	if _, err := s.ScanLinks(ctx, []models.SearchLink{link}, true); err != nil {
		s.logger.Error().Err(err).Str("link_id", linkID).Msg("❌ Manual scan failed")
	}
}

func (s *Scanner) scanLinks(ctx context.Context, links []models.SearchLink, notify bool) (*Result, error) {
	res := &Result{ByLink: make(map[string][]models.JobListing, len(links))}
	s.logger.Info().Int("links", len(links)).Msg("🔍 Scanning search links")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, link := range links {
		g.Go(func() error {
			listings, ok, err := s.scanOneLink(gctx, link)
			mu.Lock()
			defer mu.Unlock()
			res.ByLink[link.ID] = listings
			if !ok {
				res.FailedLinks = append(res.FailedLinks, link.ID)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if ctx.Err() != nil {
		s.logger.Info().Msg("🛑 Scanner stopped, skipping enrichment")
		return res, nil
	}

	pending, err := s.deps.Listings.ListProcessingListings(ctx, s.opts.ProcessingLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("❌ Failed to list processing listings")
		return res, fmt.Errorf("list processing listings: %w", err)
	}

	updated, err := s.ScanJobs(ctx, pending)
	if err != nil {
		return res, err
	}

	for _, l := range updated {
		if l.Status == models.StatusNew {
			res.NewListings = append(res.NewListings, l)
		}
	}
	s.logger.Info().Int("pending", len(pending)).Int("new", len(res.NewListings)).
		Int("failed_links", len(res.FailedLinks)).Msg("✅ Scan cycle finished")

	if s.deps.Hook != nil {
		ids := make([]string, len(res.NewListings))
		for i, l := range res.NewListings {
			ids[i] = l.ID
		}
		if err := s.deps.Hook.RunPostScanHook(ctx, ids, s.Settings().EmailAlerts); err != nil {
			s.logger.Warn().Err(err).Msg("⚠️ Post-scan hook failed")
		}
	}

	if notify {
		s.ShowNewJobsNotification(ctx, res.NewListings)
	}
	return res, nil
}

// scanOneLink loads a link's results page and hands it to the extractor. The
// bool is false when the link failed; err is only set for fatal errors.
func (s *Scanner) scanOneLink(ctx context.Context, link models.SearchLink) ([]models.JobListing, bool, error) {
	req := loader.Request{URL: link.URL, ScrollPasses: s.opts.LinkScrollPasses}
	listings, err := loader.Load(ctx, s.deps.Normal, req, func(ctx context.Context, doc loader.Document) ([]models.JobListing, error) {
		r, err := s.deps.ListingExtractor.ExtractAndUpsertListings(ctx, link.ID, doc.HTML, doc.MaxRetries, doc.RetryCount)
		if err != nil {
			return nil, err
		}
		if r.ParseFailed {
			return nil, fmt.Errorf("link %s: %w", link.ID, ErrParseFailed)
		}
		return r.NewListings, nil
	})

	switch {
	case err == nil:
		s.logger.Debug().Str("link_id", link.ID).Int("listings", len(listings)).Msg("📄 Link scanned")
		s.pause(ctx, s.opts.LinkDelayMin, s.opts.LinkDelayMax)
		return listings, true, nil
	case errors.Is(err, loader.ErrStopped):
		return nil, true, nil
	case errors.Is(err, browser.ErrNoSessionAvailable):
		return nil, false, err
	}

	ev := s.logger.Error().Err(err).Str("link_id", link.ID).Str("url", link.URL)
	if errors.Is(err, ErrParseFailed) {
		ev.Str("category", "parse").Msg("❌ Could not parse search results")
	} else {
		ev.Str("category", loader.KindOf(err).String()).Msg("❌ Failed to scan link")
	}

	if ferr := s.deps.Links.IncreaseFailureCount(ctx, link.ID, link.FailureCount+1); ferr != nil {
		s.logger.Warn().Err(ferr).Str("link_id", link.ID).Msg("⚠️ Could not record link failure")
	}
	return []models.JobListing{}, false, nil
}

// ScanJobs fetches descriptions for listings. Listings on sites that need an
// isolated partition go through the isolated pool; the two groups run side by
// side, each in sequential batches whose members run concurrently. The
// result is in input order; a listing that could not be fetched comes back
// unchanged.
func (s *Scanner) ScanJobs(ctx context.Context, listings []models.JobListing) ([]models.JobListing, error) {
	if len(listings) == 0 {
		return []models.JobListing{}, nil
	}

	isolatedSites := make(map[string]bool)
	if s.deps.Sites != nil && s.deps.Isolated != nil {
		sites, err := s.deps.Sites.ListSites(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("⚠️ Could not list sites, using the normal pool for every listing")
		}
		for _, site := range sites {
			isolatedSites[site.ID] = site.IsolatedScraping
		}
	}

	var normal, isolated []models.JobListing
	for _, l := range listings {
		if isolatedSites[l.SiteID] {
			isolated = append(isolated, l)
		} else {
			normal = append(normal, l)
		}
	}
	s.logger.Info().Int("normal", len(normal)).Int("isolated", len(isolated)).Msg("📝 Fetching job descriptions")

	var mu sync.Mutex
	done := make(map[string]models.JobListing, len(listings))
	store := func(id string, l models.JobListing) {
		mu.Lock()
		done[id] = l
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.scanJobGroup(gctx, s.deps.Normal, normal, store) })
	if len(isolated) > 0 {
		g.Go(func() error { return s.scanJobGroup(gctx, s.deps.Isolated, isolated, store) })
	}
	err := g.Wait()

	out := make([]models.JobListing, len(listings))
	for i, l := range listings {
		if u, ok := done[l.ID]; ok {
			out[i] = u
		} else {
			out[i] = l
		}
	}
	return out, err
}

func (s *Scanner) scanJobGroup(ctx context.Context, ldr *loader.Loader, listings []models.JobListing, store func(string, models.JobListing)) error {
	size := s.opts.BatchSize
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(listings); start += size {
		if ctx.Err() != nil {
			return nil
		}
		end := min(start+size, len(listings))

		g, gctx := errgroup.WithContext(ctx)
		for _, l := range listings[start:end] {
			g.Go(func() error {
				u, err := s.scanOneJob(gctx, ldr, l)
				store(l.ID, u)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// scanOneJob returns the enriched listing, or the original one when the page
// could not be fetched or parsed.
func (s *Scanner) scanOneJob(ctx context.Context, ldr *loader.Loader, listing models.JobListing) (models.JobListing, error) {
	req := loader.Request{URL: listing.ExternalURL, ScrollPasses: s.opts.JobScrollPasses}
	updated, err := loader.Load(ctx, ldr, req, func(ctx context.Context, doc loader.Document) (models.JobListing, error) {
		r, err := s.deps.DescriptionExtractor.ExtractDescriptionAndFilter(ctx, listing.ID, doc.HTML, doc.MaxRetries, doc.RetryCount)
		if err != nil {
			return models.JobListing{}, err
		}
		if r.ParseFailed {
			return models.JobListing{}, fmt.Errorf("listing %s: %w", listing.ID, ErrParseFailed)
		}
		return r.Listing, nil
	})

	switch {
	case err == nil:
		s.pause(ctx, s.opts.JobDelayMin, s.opts.JobDelayMax)
		return updated, nil
	case errors.Is(err, browser.ErrNoSessionAvailable):
		return listing, err
	case errors.Is(err, loader.ErrStopped):
		return listing, nil
	}

	s.logger.Warn().Err(err).Str("listing_id", listing.ID).Str("url", listing.ExternalURL).
		Msg("⚠️ Could not fetch job description, will retry next cycle")
	return listing, nil
}
