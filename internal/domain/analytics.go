package domain

// Period selects the analytics time range, ending at "now".
type Period string

const (
	Period1h  Period = "1h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

// Granularity selects the timeline bucket width.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// EventFilter restricts which event types are aggregated.
type EventFilter string

const (
	FilterAll      EventFilter = "all"
	FilterSuccess  EventFilter = "success"
	FilterFailures EventFilter = "failures"
)

// TimelineBucket is one fixed-width slot of the click timeline
type TimelineBucket struct {
	Start          int64 `json:"start"` // epoch millis, inclusive
	Clicks         int64 `json:"clicks"`
	UniqueVisitors int64 `json:"unique_visitors"` // distinct ip hashes, coarse
}

// BreakdownEntry is one group of a top-N dimension breakdown
type BreakdownEntry struct {
	Value      string  `json:"value"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// DeviceMix is the fixed four-bucket device histogram
type DeviceMix struct {
	Desktop int64 `json:"desktop"`
	Mobile  int64 `json:"mobile"`
	Tablet  int64 `json:"tablet"`
	Unknown int64 `json:"unknown"`
}

// AnalyticsSummary holds the headline statistics for a report
type AnalyticsSummary struct {
	FirstClick     int64   `json:"first_click,omitempty"` // epoch millis
	LastClick      int64   `json:"last_click,omitempty"`  // epoch millis
	PeakBucket     int64   `json:"peak_bucket,omitempty"` // start of the busiest bucket
	AvgClicksPer   float64 `json:"avg_clicks_per_bucket"`
	TotalClicks    int64   `json:"total_clicks"`
	UniqueVisitors int64   `json:"unique_visitors"`
}

// AnalyticsReport is the full aggregation result for one short code
type AnalyticsReport struct {
	ShortCode   string           `json:"short_code"`
	Period      Period           `json:"period"`
	Granularity Granularity      `json:"granularity"`
	Filter      EventFilter      `json:"filter"`
	StartTime   int64            `json:"start_time"` // epoch millis
	EndTime     int64            `json:"end_time"`   // epoch millis
	Timeline    []TimelineBucket `json:"timeline"`
	Referrers   []BreakdownEntry `json:"referrers"`
	Countries   []BreakdownEntry `json:"countries"`
	Browsers    []BreakdownEntry `json:"browsers"`
	Devices     DeviceMix        `json:"devices"`
	Summary     AnalyticsSummary `json:"summary"`
	Truncated   bool             `json:"truncated,omitempty"` // event scan hit the read cap
}
