package domain

// EventType classifies the outcome of a resolution attempt.
type EventType string

const (
	EventSuccess  EventType = "SUCCESS"
	EventNotFound EventType = "NOT_FOUND"
	EventExpired  EventType = "EXPIRED"
)

// Link represents a short-code-to-destination mapping
type Link struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	URLHash     string `json:"-"`
	CreatedAt   int64  `json:"created_at"`           // epoch millis
	ExpiresAt   int64  `json:"expires_at,omitempty"` // epoch millis, 0 means never
	ClickCount  int64  `json:"click_count"`
	LastClickAt int64  `json:"last_click_at,omitempty"` // epoch millis
	IsCustom    bool   `json:"is_custom"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// Expired reports whether the link is past its expiry at the given epoch-millis
// instant. A zero ExpiresAt means the link never expires.
func (l *Link) Expired(nowMillis int64) bool {
	return l.ExpiresAt != 0 && l.ExpiresAt <= nowMillis
}

// ClickEvent represents one resolution attempt, appended to the event log
type ClickEvent struct {
	ShortCode      string    `json:"short_code"`
	Timestamp      int64     `json:"timestamp"` // epoch millis
	EventType      EventType `json:"event_type"`
	IPHash         string    `json:"ip_hash"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Referer        string    `json:"referer,omitempty"`
	Country        string    `json:"country,omitempty"`
	Device         string    `json:"device,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browser_version,omitempty"`
	OS             string    `json:"os,omitempty"`
	HourPartition  string    `json:"-"`
	ExpiresAt      int64     `json:"-"` // retention horizon, epoch seconds
}

// RateLimitCounter is one atomic counter row for an (identity, action, window) triple
type RateLimitCounter struct {
	PartitionKey string
	RequestCount int64
	WindowStart  int64 // epoch seconds
	WindowEnd    int64 // epoch seconds
	TTL          int64 // epoch seconds
}

// CreateLinkRequest is the JSON body for link creation
type CreateLinkRequest struct {
	URL        string `json:"url"`
	CustomCode string `json:"custom_code,omitempty"`
	ExpiresIn  int64  `json:"expires_in,omitempty"` // seconds from now, 0 means never
}

// CreateLinkResponse is returned from link creation; Created is false when an
// existing link for the same URL was reused
type CreateLinkResponse struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	Created     bool   `json:"created"`
}

// RequestMeta carries the caller attributes the HTTP layer extracts for click recording
type RequestMeta struct {
	IP        string
	UserAgent string
	Referer   string
	Country   string
}

// RateLimitDecision is the outcome of a rate-limit check
type RateLimitDecision struct {
	Allowed    bool  `json:"allowed"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
	ResetTime  int64 `json:"reset_time"`            // epoch seconds when the window ends
	RetryAfter int64 `json:"retry_after,omitempty"` // seconds, only set when rejected
}
