package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-openclaw-scanner/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrSchemaMissing = errors.New("schema missing, run `scanner check` to create it")
)

// queryError wraps err, mapping an undefined table to ErrSchemaMissing.
func queryError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%s: %w", op, ErrSchemaMissing)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	// Transaction-mode poolers reject prepared statements, so skip the cache.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// ---------------- SEARCH LINKS ----------------

const linkColumns = `id::text, url, COALESCE(site_id::text, ''), failure_count, created_at`

func scanLink(row pgx.Row) (models.SearchLink, error) {
	var l models.SearchLink
	err := row.Scan(&l.ID, &l.URL, &l.SiteID, &l.FailureCount, &l.CreatedAt)
	return l, err
}

// ListLinks returns every saved search link, oldest first.
func (r *Repository) ListLinks(ctx context.Context) ([]models.SearchLink, error) {
	rows, err := r.db.Query(ctx, `SELECT `+linkColumns+` FROM search_links ORDER BY created_at`)
	if err != nil {
		return nil, queryError("failed to list search links", err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SearchLink, error) {
		return scanLink(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan search links: %w", err)
	}
	return links, nil
}

func (r *Repository) GetLink(ctx context.Context, linkID string) (models.SearchLink, error) {
	l, err := scanLink(r.db.QueryRow(ctx, `SELECT `+linkColumns+` FROM search_links WHERE id::text = $1`, linkID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SearchLink{}, fmt.Errorf("search link %s: %w", linkID, ErrNotFound)
	}
	if err != nil {
		return models.SearchLink{}, queryError("failed to get search link", err)
	}
	return l, nil
}

// IncreaseFailureCount stores the link's new consecutive failure count.
func (r *Repository) IncreaseFailureCount(ctx context.Context, linkID string, newCount int) error {
	tag, err := r.db.Exec(ctx, `UPDATE search_links SET failure_count = $1 WHERE id::text = $2`, newCount, linkID)
	if err != nil {
		return queryError("failed to update failure count", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("search link %s: %w", linkID, ErrNotFound)
	}
	return nil
}

// ---------------- JOB LISTINGS ----------------

// ListProcessingListings returns up to limit listings still waiting for their
// description, oldest first.
func (r *Repository) ListProcessingListings(ctx context.Context, limit int) ([]models.JobListing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, COALESCE(site_id::text, ''), external_url, title, company, status,
		       COALESCE(description, ''), created_at
		FROM job_listings
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`, models.StatusProcessing, limit)
	if err != nil {
		return nil, queryError("failed to list processing listings", err)
	}
	listings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.JobListing, error) {
		var l models.JobListing
		err := row.Scan(&l.ID, &l.SiteID, &l.ExternalURL, &l.Title, &l.Company, &l.Status, &l.Description, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan listings: %w", err)
	}
	return listings, nil
}

// ---------------- SITES ----------------

func (r *Repository) ListSites(ctx context.Context) ([]models.Site, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text, name, isolated_scraping FROM sites ORDER BY name`)
	if err != nil {
		return nil, queryError("failed to list sites", err)
	}
	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Site, error) {
		var s models.Site
		err := row.Scan(&s.ID, &s.Name, &s.IsolatedScraping)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sites: %w", err)
	}
	return sites, nil
}
