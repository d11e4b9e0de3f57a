package clicks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

// Config holds click recorder tuning
type Config struct {
	IPSalt       string
	Retention    time.Duration // how long events stay queryable before TTL cleanup
	StoreTimeout time.Duration // per-write bound for background store calls
	QueueSize    int
	Workers      int
}

// DefaultConfig returns the default recorder configuration
func DefaultConfig() Config {
	return Config{
		Retention:    90 * 24 * time.Hour,
		StoreTimeout: 5 * time.Second,
		QueueSize:    1024,
		Workers:      4,
	}
}

// Recorder appends click events off the request path. Record never blocks and
// never returns an error: events flow through a buffered channel to a worker
// pool, and when the channel is full the event is dropped with a log line.
// Analytics capture is best effort by contract.
type Recorder struct {
	clickRepo repository.ClickRepository
	linkRepo  repository.LinkRepository
	cfg       Config
	log       zerolog.Logger
	now       timeutil.NowFunc

	queue chan *domain.ClickEvent
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewRecorder creates a recorder. Call Start before recording and Stop to
// drain the queue on shutdown.
func NewRecorder(clickRepo repository.ClickRepository, linkRepo repository.LinkRepository, cfg Config, log zerolog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultConfig().StoreTimeout
	}

	return &Recorder{
		clickRepo: clickRepo,
		linkRepo:  linkRepo,
		cfg:       cfg,
		log:       log.With().Str("component", "clicks").Logger(),
		now:       timeutil.Now,
		queue:     make(chan *domain.ClickEvent, cfg.QueueSize),
	}
}

// Start launches the worker pool
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop closes the queue and waits for in-flight events to be written
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
}

// Record enqueues one resolution attempt for persistence. The raw IP is
// salted-hashed before it leaves this function; only the hash is stored.
func (r *Recorder) Record(shortCode string, eventType domain.EventType, meta domain.RequestMeta) {
	now := r.now()
	agent := parseAgent(meta.UserAgent)

	event := &domain.ClickEvent{
		ShortCode:      shortCode,
		Timestamp:      now.UnixMilli(),
		EventType:      eventType,
		IPHash:         HashIP(meta.IP, r.cfg.IPSalt),
		UserAgent:      meta.UserAgent,
		Referer:        meta.Referer,
		Country:        meta.Country,
		Device:         agent.Device,
		Browser:        agent.Browser,
		BrowserVersion: agent.BrowserVersion,
		OS:             agent.OS,
		HourPartition:  HourPartition(shortCode, now),
		ExpiresAt:      now.Add(r.cfg.Retention).Unix(),
	}

	select {
	case r.queue <- event:
	default:
		r.log.Warn().Str("short_code", shortCode).Msg("click queue full, dropping event")
	}
}

// worker drains the queue. Each write runs under a detached context bounded by
// the store timeout so it never inherits the caller's cancellation.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)

		if err := r.clickRepo.AppendClick(ctx, event); err != nil {
			r.log.Error().Err(err).Str("short_code", event.ShortCode).Msg("failed to append click event")
		}

		// Best-effort link counter bump, only for successful resolutions
		if event.EventType == domain.EventSuccess {
			if err := r.linkRepo.RecordClick(ctx, event.ShortCode, event.Timestamp); err != nil {
				r.log.Error().Err(err).Str("short_code", event.ShortCode).Msg("failed to increment click counter")
			}
		}

		cancel()
	}
}

// HashIP returns the salted one-way hash of a caller IP. The raw IP is never
// persisted.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])[:16]
}

// HourPartition derives the "{shortCode}#{hourBucket}" key that bounds
// range-scan size for analytics queries.
func HourPartition(shortCode string, t time.Time) string {
	return shortCode + "#" + t.UTC().Format("2006-01-02T15")
}
