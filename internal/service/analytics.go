package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/clicks"
	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

const (
	maxBreakdownEntries = 10

	// directReferrer labels events that arrived without a Referer header
	directReferrer = "direct"
	unknownValue   = "unknown"
)

// AnalyticsConfig holds aggregation limits
type AnalyticsConfig struct {
	MaxEvents int // total events read per report, bounding memory and latency
	PageSize  int // events per range-query page
}

// DefaultAnalyticsConfig returns the default aggregation limits
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		MaxEvents: 10000,
		PageSize:  1000,
	}
}

// analyticsService implements the Analytics interface
type analyticsService struct {
	clickRepo repository.ClickRepository
	linkRepo  repository.LinkRepository
	cfg       AnalyticsConfig
	log       zerolog.Logger
	now       timeutil.NowFunc
}

// NewAnalyticsService creates the click-event aggregator
func NewAnalyticsService(clickRepo repository.ClickRepository, linkRepo repository.LinkRepository, cfg AnalyticsConfig, log zerolog.Logger) Analytics {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultAnalyticsConfig().MaxEvents
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultAnalyticsConfig().PageSize
	}

	return &analyticsService{
		clickRepo: clickRepo,
		linkRepo:  linkRepo,
		cfg:       cfg,
		log:       log.With().Str("component", "analytics").Logger(),
		now:       timeutil.Now,
	}
}

// Aggregate builds the full report for one short code. A lightweight existence
// probe runs first so an unknown code short-circuits before any event scan.
func (s *analyticsService) Aggregate(ctx context.Context, shortCode string, period domain.Period, granularity domain.Granularity, filter domain.EventFilter) (*domain.AnalyticsReport, error) {
	periodDur, err := periodDuration(period)
	if err != nil {
		return nil, err
	}
	bucketWidth, err := bucketWidthMillis(granularity)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		filter = domain.FilterAll
	}
	if filter != domain.FilterAll && filter != domain.FilterSuccess && filter != domain.FilterFailures {
		return nil, fmt.Errorf("unknown event filter %q", filter)
	}

	if _, err := s.linkRepo.GetLink(ctx, shortCode); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	endTime := s.now().UnixMilli()
	startTime := endTime - periodDur.Milliseconds()

	events, truncated, err := s.scanEvents(ctx, shortCode, startTime, endTime)
	if err != nil {
		return nil, err
	}

	included := filterEvents(events, filter)

	report := &domain.AnalyticsReport{
		ShortCode:   shortCode,
		Period:      period,
		Granularity: granularity,
		Filter:      filter,
		StartTime:   startTime,
		EndTime:     endTime,
		Truncated:   truncated,
	}

	report.Timeline = buildTimeline(included, startTime, endTime, bucketWidth)
	report.Referrers = buildBreakdown(included, func(e *domain.ClickEvent) string {
		if e.Referer == "" {
			return directReferrer
		}
		return e.Referer
	})
	report.Countries = buildBreakdown(included, func(e *domain.ClickEvent) string {
		if e.Country == "" {
			return unknownValue
		}
		return e.Country
	})
	report.Browsers = buildBreakdown(included, func(e *domain.ClickEvent) string {
		if e.Browser == "" {
			return unknownValue
		}
		return e.Browser
	})
	report.Devices = buildDeviceMix(included)
	report.Summary = buildSummary(included, report.Timeline)

	return report, nil
}

// scanEvents pages through the event log until the window is exhausted or the
// read cap is hit. The cap bounds memory for hot links; hitting it is reported
// rather than silently dropping the tail.
func (s *analyticsService) scanEvents(ctx context.Context, shortCode string, startTime, endTime int64) ([]*domain.ClickEvent, bool, error) {
	var events []*domain.ClickEvent
	token := ""

	for {
		remaining := s.cfg.MaxEvents - len(events)
		if remaining <= 0 {
			s.log.Warn().Str("short_code", shortCode).Int("max_events", s.cfg.MaxEvents).
				Msg("event scan hit read cap, report is truncated")
			return events, true, nil
		}

		limit := s.cfg.PageSize
		if remaining < limit {
			limit = remaining
		}

		page, err := s.clickRepo.QueryClicks(ctx, shortCode, startTime, endTime, token, limit)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", domain.ErrStore, err)
		}

		events = append(events, page.Events...)
		if page.NextToken == "" {
			return events, false, nil
		}
		token = page.NextToken
	}
}

// filterEvents applies the event-type filter to the scanned window
func filterEvents(events []*domain.ClickEvent, filter domain.EventFilter) []*domain.ClickEvent {
	if filter == domain.FilterAll {
		return events
	}

	included := make([]*domain.ClickEvent, 0, len(events))
	for _, e := range events {
		success := e.EventType == domain.EventSuccess
		if (filter == domain.FilterSuccess && success) || (filter == domain.FilterFailures && !success) {
			included = append(included, e)
		}
	}
	return included
}

// buildTimeline partitions [startTime, endTime) into fixed-width buckets,
// counting events and distinct IP hashes per bucket.
func buildTimeline(events []*domain.ClickEvent, startTime, endTime, bucketWidth int64) []domain.TimelineBucket {
	numBuckets := int((endTime - startTime + bucketWidth - 1) / bucketWidth)
	buckets := make([]domain.TimelineBucket, numBuckets)
	visitors := make([]map[string]struct{}, numBuckets)
	for i := range buckets {
		buckets[i].Start = startTime + int64(i)*bucketWidth
		visitors[i] = make(map[string]struct{})
	}

	for _, e := range events {
		if e.Timestamp < startTime || e.Timestamp >= endTime {
			continue
		}
		i := int((e.Timestamp - startTime) / bucketWidth)
		buckets[i].Clicks++
		if e.IPHash != "" {
			visitors[i][e.IPHash] = struct{}{}
		}
	}

	for i := range buckets {
		buckets[i].UniqueVisitors = int64(len(visitors[i]))
	}

	return buckets
}

// buildBreakdown groups successful events by one dimension and returns the top
// groups by click count with their percentage of the successful total. The
// sort is stable so ties keep first-seen order.
func buildBreakdown(events []*domain.ClickEvent, dimension func(*domain.ClickEvent) string) []domain.BreakdownEntry {
	counts := make(map[string]int64)
	var order []string
	var total int64

	for _, e := range events {
		if e.EventType != domain.EventSuccess {
			continue
		}
		value := dimension(e)
		if _, seen := counts[value]; !seen {
			order = append(order, value)
		}
		counts[value]++
		total++
	}

	if total == 0 {
		return []domain.BreakdownEntry{}
	}

	entries := make([]domain.BreakdownEntry, 0, len(order))
	for _, value := range order {
		entries = append(entries, domain.BreakdownEntry{
			Value:      value,
			Clicks:     counts[value],
			Percentage: float64(counts[value]) * 100 / float64(total),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Clicks > entries[j].Clicks
	})

	if len(entries) > maxBreakdownEntries {
		entries = entries[:maxBreakdownEntries]
	}

	return entries
}

// buildDeviceMix fills the fixed four-bucket device histogram
func buildDeviceMix(events []*domain.ClickEvent) domain.DeviceMix {
	var mix domain.DeviceMix
	for _, e := range events {
		switch e.Device {
		case clicks.DeviceDesktop:
			mix.Desktop++
		case clicks.DeviceMobile:
			mix.Mobile++
		case clicks.DeviceTablet:
			mix.Tablet++
		default:
			mix.Unknown++
		}
	}
	return mix
}

// buildSummary computes first/last click, the peak bucket (first max wins),
// mean clicks per bucket, and coarse unique-visitor count.
func buildSummary(events []*domain.ClickEvent, timeline []domain.TimelineBucket) domain.AnalyticsSummary {
	summary := domain.AnalyticsSummary{
		TotalClicks: int64(len(events)),
	}

	visitors := make(map[string]struct{})
	for _, e := range events {
		if summary.FirstClick == 0 || e.Timestamp < summary.FirstClick {
			summary.FirstClick = e.Timestamp
		}
		if e.Timestamp > summary.LastClick {
			summary.LastClick = e.Timestamp
		}
		if e.IPHash != "" {
			visitors[e.IPHash] = struct{}{}
		}
	}
	summary.UniqueVisitors = int64(len(visitors))

	var peak int64 = -1
	for _, bucket := range timeline {
		if bucket.Clicks > peak {
			peak = bucket.Clicks
			summary.PeakBucket = bucket.Start
		}
	}
	if len(timeline) > 0 {
		summary.AvgClicksPer = float64(summary.TotalClicks) / float64(len(timeline))
	}
	if summary.TotalClicks == 0 {
		summary.PeakBucket = 0
	}

	return summary
}

// periodDuration maps a report period to its duration
func periodDuration(period domain.Period) (time.Duration, error) {
	switch period {
	case domain.Period1h:
		return time.Hour, nil
	case domain.Period24h:
		return 24 * time.Hour, nil
	case domain.Period7d:
		return 7 * 24 * time.Hour, nil
	case domain.Period30d:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown period %q", period)
	}
}

// bucketWidthMillis maps a granularity to its bucket width in epoch millis
func bucketWidthMillis(granularity domain.Granularity) (int64, error) {
	switch granularity {
	case domain.GranularityHour:
		return time.Hour.Milliseconds(), nil
	case domain.GranularityDay:
		return (24 * time.Hour).Milliseconds(), nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", granularity)
	}
}

// Ensure analyticsService implements the Analytics interface
var _ Analytics = (*analyticsService)(nil)
