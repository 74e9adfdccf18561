package models

import (
	"strings"
	"time"
)

type ListingStatus string

const (
	StatusProcessing ListingStatus = "processing"
	StatusNew        ListingStatus = "new"

	// Excluded variants are assigned by the filter collaborator.
	StatusExcludedByKeyword  ListingStatus = "excluded_by_keyword"
	StatusExcludedByAdvanced ListingStatus = "excluded_by_advanced_matching"
)

// IsExcluded reports whether the status is one of the excluded variants.
func (s ListingStatus) IsExcluded() bool {
	return strings.HasPrefix(string(s), "excluded")
}

// SearchLink is a saved job search that gets re-scanned on every cycle.
type SearchLink struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	SiteID       string    `json:"site_id"`
	FailureCount int       `json:"failure_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type JobListing struct {
	ID          string        `json:"id"`
	SiteID      string        `json:"site_id"`
	ExternalURL string        `json:"external_url"`
	Title       string        `json:"title"`
	Company     string        `json:"company"`
	Status      ListingStatus `json:"status"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Site is a job board. Sites flagged IsolatedScraping are crawled with
// sessions from the isolated partition.
type Site struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsolatedScraping bool   `json:"isolated_scraping"`
}
