package repository

import (
	"context"

	"github.com/mgriffin/linkpulse/internal/domain"
)

// ClickPage is one page of a click-event range scan. NextToken is opaque to
// callers; an empty token means the scan is complete.
type ClickPage struct {
	Events    []*domain.ClickEvent
	NextToken string
}

// LinkRepository defines storage operations for short-link mappings
type LinkRepository interface {
	// CreateLink writes a link with a not-exists guard on the short code.
	// Returns domain.ErrCodeExists when the code is already taken.
	CreateLink(ctx context.Context, link *domain.Link) error

	// GetLink retrieves a link by short code.
	// Returns domain.ErrLinkNotFound when absent.
	GetLink(ctx context.Context, shortCode string) (*domain.Link, error)

	// FindByURLHash queries the url-hash secondary index for a link that is
	// still active at nowMillis; expired rows never match, so a URL with an
	// expired predecessor deduplicates against its replacement, not the
	// predecessor. Returns domain.ErrLinkNotFound when no active link carries
	// the hash.
	FindByURLHash(ctx context.Context, urlHash string, nowMillis int64) (*domain.Link, error)

	// RecordClick atomically increments the click counter and stamps the last
	// click time (epoch millis) for a short code.
	RecordClick(ctx context.Context, shortCode string, clickedAt int64) error

	// Close closes the repository connection
	Close() error
}

// ClickRepository defines append and range-scan operations over the click event log
type ClickRepository interface {
	// AppendClick appends one event to the log. Events are never mutated.
	AppendClick(ctx context.Context, event *domain.ClickEvent) error

	// QueryClicks scans events for a short code within [startTime, endTime)
	// epoch millis, paginated by the continuation token, at most limit events
	// per page.
	QueryClicks(ctx context.Context, shortCode string, startTime, endTime int64, token string, limit int) (*ClickPage, error)

	// Close closes the repository connection
	Close() error
}

// RateLimitRepository defines the atomic window-counter operations
type RateLimitRepository interface {
	// IncrementCounter atomically adds delta to the counter row, creating it
	// with the given window bounds on first use, and returns the
	// post-increment count.
	IncrementCounter(ctx context.Context, counter *domain.RateLimitCounter, delta int64) (int64, error)

	// GetCounter reads the current count for a partition key without
	// incrementing. A missing row reads as zero.
	GetCounter(ctx context.Context, partitionKey string) (int64, error)

	// Close closes the repository connection
	Close() error
}
