package service

import (
	"context"

	"github.com/mgriffin/linkpulse/internal/domain"
)

// Links defines the link registry operations
type Links interface {
	// Create registers a short link for a URL. When the same URL was already
	// registered without a custom code, the existing link is returned with
	// created=false instead of a duplicate being written.
	Create(ctx context.Context, req domain.CreateLinkRequest, owner string) (link *domain.Link, created bool, err error)

	// Get retrieves a link by short code
	Get(ctx context.Context, shortCode string) (*domain.Link, error)
}

// Outcome is the terminal state of a resolution attempt.
type Outcome string

const (
	OutcomeActive   Outcome = "active"
	OutcomeExpired  Outcome = "expired"
	OutcomeNotFound Outcome = "not_found"
)

// Resolution is the tagged result of a resolve call. The three outcomes are
// states, not errors; only store failures on the lookup surface as errors.
type Resolution struct {
	Outcome        Outcome
	DestinationURL string
}

// Resolver defines the redirect resolution operation
type Resolver interface {
	// Resolve looks up a short code and schedules click recording as a
	// fire-and-forget side effect that never alters the returned outcome.
	Resolve(ctx context.Context, shortCode string, meta domain.RequestMeta) (Resolution, error)
}

// Analytics defines the click-event aggregation operation
type Analytics interface {
	// Aggregate scans the event log for a short code over the period and
	// produces the full report. Returns domain.ErrLinkNotFound when the code
	// does not exist.
	Aggregate(ctx context.Context, shortCode string, period domain.Period, granularity domain.Granularity, filter domain.EventFilter) (*domain.AnalyticsReport, error)
}

// ClickSink receives resolution attempts for asynchronous recording. The
// production implementation is the clicks.Recorder worker pool.
type ClickSink interface {
	Record(shortCode string, eventType domain.EventType, meta domain.RequestMeta)
}
