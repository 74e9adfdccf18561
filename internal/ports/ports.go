// Package ports declares the collaborators the scan engine consumes but does
// not own: stores, extraction services and OS-level handles.
package ports

import (
	"context"

	"go-openclaw-scanner/internal/models"
)

type LinkStore interface {
	ListLinks(ctx context.Context) ([]models.SearchLink, error)
	GetLink(ctx context.Context, linkID string) (models.SearchLink, error)
	IncreaseFailureCount(ctx context.Context, linkID string, newCount int) error
}

type ListingStore interface {
	// ListProcessingListings returns up to limit listings still in the
	// processing status, oldest first.
	ListProcessingListings(ctx context.Context, limit int) ([]models.JobListing, error)
}

type SiteRegistry interface {
	ListSites(ctx context.Context) ([]models.Site, error)
}

// ExtractResult is what the list-page extractor reports back.
type ExtractResult struct {
	NewListings []models.JobListing `json:"newListings"`
	ParseFailed bool                `json:"parseFailed"`
}

// ListingExtractor parses a search results page and upserts the listings.
type ListingExtractor interface {
	ExtractAndUpsertListings(ctx context.Context, linkID, html string, maxRetries, retryCount int) (ExtractResult, error)
}

// DescriptionResult is what the detail-page extractor reports back.
type DescriptionResult struct {
	Listing     models.JobListing `json:"listing"`
	ParseFailed bool              `json:"parseFailed"`
}

// DescriptionExtractor parses a listing detail page, stores the description
// and applies the user's filters, which decide the listing's final status.
type DescriptionExtractor interface {
	ExtractDescriptionAndFilter(ctx context.Context, listingID, html string, maxRetries, retryCount int) (DescriptionResult, error)
}

// PostScanHook runs once per cycle with the listings that ended up new.
type PostScanHook interface {
	RunPostScanHook(ctx context.Context, newListingIDs []string, emailAlerts bool) error
}

// Trigger is a registered scheduled callback.
type Trigger interface {
	Stop()
}

type Scheduler interface {
	Schedule(expr string, fn func()) (Trigger, error)
}

// SleepHandle keeps the machine awake until released.
type SleepHandle interface {
	Release() error
}

type SleepPreventer interface {
	Prevent() (SleepHandle, error)
}

type NotificationAction string

const (
	ActionOpen    NotificationAction = "open"
	ActionDismiss NotificationAction = "dismiss"
)

type Notification struct {
	ID     string
	Title  string
	Body   string
	Silent bool
}

// NotificationHandle is a displayed notification.
type NotificationHandle interface {
	Close() error
}

type Notifier interface {
	Show(ctx context.Context, n Notification) (NotificationHandle, error)
}

// ListingsView is where a clicked notification takes the user.
type ListingsView interface {
	OpenListings(ctx context.Context) error
}
