package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/ratelimit"
	"github.com/mgriffin/linkpulse/internal/service"
)

// RateLimiter is the limiter surface the handlers consume
type RateLimiter interface {
	Check(ctx context.Context, identity string, action ratelimit.Action, role ratelimit.Role, increment int64) domain.RateLimitDecision
	Status(ctx context.Context, identity string, action ratelimit.Action, role ratelimit.Role) (domain.RateLimitDecision, error)
}

// Handler holds the HTTP handlers for the resolver service
type Handler struct {
	links     service.Links
	resolver  service.Resolver
	analytics service.Analytics
	limiter   RateLimiter
	metrics   *Metrics
	serverURL string
	log       zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(links service.Links, resolver service.Resolver, analytics service.Analytics,
	limiter RateLimiter, metrics *Metrics, serverURL string, log zerolog.Logger) *Handler {
	return &Handler{
		links:     links,
		resolver:  resolver,
		analytics: analytics,
		limiter:   limiter,
		metrics:   metrics,
		serverURL: serverURL,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error string `json:"error"`
}

// CreateLink handles POST /api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, role := callerIdentity(r)
	decision := h.limiter.Check(r.Context(), identity, ratelimit.ActionCreate, role, 1)
	writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		h.metrics.RateLimitRejections.WithLabelValues(string(ratelimit.ActionCreate)).Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Unknown fields are rejected at the boundary rather than passed through
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req domain.CreateLinkRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	link, created, err := h.links.Create(r.Context(), req, identity)
	if err != nil {
		h.writeCreateError(w, req, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	writeJSON(w, status, domain.CreateLinkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    h.serverURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		Created:     created,
	})
}

// writeCreateError maps registry errors onto status codes per the error taxonomy
func (h *Handler) writeCreateError(w http.ResponseWriter, req domain.CreateLinkRequest, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrReservedCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCodeExists):
		writeError(w, http.StatusConflict, "custom code already exists")
	case errors.Is(err, domain.ErrExhaustedAttempts):
		writeError(w, http.StatusServiceUnavailable, "could not allocate a short code, try again")
	default:
		h.log.Error().Err(err).Str("url", req.URL).Msg("link creation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// GetLink handles GET /api/links/{code}
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request, shortCode string) {
	link, err := h.links.Get(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			writeError(w, http.StatusNotFound, "short code not found")
			return
		}
		h.log.Error().Err(err).Str("short_code", shortCode).Msg("link lookup failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, link)
}

// Stats handles GET /api/links/{code}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request, shortCode string) {
	identity, role := callerIdentity(r)
	decision := h.limiter.Check(r.Context(), identity, ratelimit.ActionAnalytics, role, 1)
	writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		h.metrics.RateLimitRejections.WithLabelValues(string(ratelimit.ActionAnalytics)).Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	period, granularity, filter, err := statsParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.analytics.Aggregate(r.Context(), shortCode, period, granularity, filter)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			writeError(w, http.StatusNotFound, "short code not found")
			return
		}
		h.log.Error().Err(err).Str("short_code", shortCode).Msg("aggregation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Limits handles GET /api/limits, a read-only view of the caller's standing
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	action := ratelimit.Action(r.URL.Query().Get("action"))
	switch action {
	case "":
		action = ratelimit.ActionRedirect
	case ratelimit.ActionCreate, ratelimit.ActionRedirect, ratelimit.ActionAnalytics:
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	identity, role := callerIdentity(r)
	decision, err := h.limiter.Status(r.Context(), identity, action, role)
	if err != nil {
		h.log.Error().Err(err).Msg("rate limit status read failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeRateLimitHeaders(w, decision)
	writeJSON(w, http.StatusOK, decision)
}

// Redirect handles GET /{code}, the hot path
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := strings.TrimPrefix(r.URL.Path, "/")
	if shortCode == "" || strings.ContainsRune(shortCode, '/') {
		http.NotFound(w, r)
		return
	}

	identity, role := callerIdentity(r)
	decision := h.limiter.Check(r.Context(), identity, ratelimit.ActionRedirect, role, 1)
	writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		h.metrics.RateLimitRejections.WithLabelValues(string(ratelimit.ActionRedirect)).Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	resolution, err := h.resolver.Resolve(r.Context(), shortCode, requestMeta(r))
	if err != nil {
		h.log.Error().Err(err).Str("short_code", shortCode).Msg("resolution failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.metrics.RedirectOutcomes.WithLabelValues(string(resolution.Outcome)).Inc()

	switch resolution.Outcome {
	case service.OutcomeActive:
		http.Redirect(w, r, resolution.DestinationURL, http.StatusMovedPermanently)
	case service.OutcomeExpired:
		writeError(w, http.StatusGone, "short link expired")
	default:
		writeError(w, http.StatusNotFound, "short code not found")
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LinksDetailHandler routes /api/links/{code} and /api/links/{code}/stats
func (h *Handler) LinksDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/links/")
	if code, ok := strings.CutSuffix(rest, "/stats"); ok {
		h.Stats(w, r, code)
		return
	}
	if rest == "" || strings.ContainsRune(rest, '/') {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.GetLink(w, r, rest)
}

// statsParams parses and defaults the analytics query parameters
func statsParams(r *http.Request) (domain.Period, domain.Granularity, domain.EventFilter, error) {
	q := r.URL.Query()

	period := domain.Period(q.Get("period"))
	switch period {
	case "":
		period = domain.Period24h
	case domain.Period1h, domain.Period24h, domain.Period7d, domain.Period30d:
	default:
		return "", "", "", errors.New("period must be one of 1h, 24h, 7d, 30d")
	}

	granularity := domain.Granularity(q.Get("granularity"))
	switch granularity {
	case "":
		granularity = domain.GranularityHour
	case domain.GranularityHour, domain.GranularityDay:
	default:
		return "", "", "", errors.New("granularity must be hour or day")
	}

	filter := domain.EventFilter(q.Get("filter"))
	switch filter {
	case "":
		filter = domain.FilterAll
	case domain.FilterAll, domain.FilterSuccess, domain.FilterFailures:
	default:
		return "", "", "", errors.New("filter must be all, success, or failures")
	}

	return period, granularity, filter, nil
}

// callerIdentity extracts the authenticated identity and role the routing
// layer supplies. Anonymous callers fall back to their IP and the free tier.
func callerIdentity(r *http.Request) (string, ratelimit.Role) {
	identity := r.Header.Get("X-Client-ID")
	if identity == "" {
		identity = clientIP(r)
	}

	role := ratelimit.Role(r.Header.Get("X-Client-Role"))
	switch role {
	case ratelimit.RoleFree, ratelimit.RolePremium, ratelimit.RoleAdmin:
	default:
		role = ratelimit.RoleFree
	}

	return identity, role
}

// requestMeta collects the caller attributes recorded with each click
func requestMeta(r *http.Request) domain.RequestMeta {
	return domain.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
		Country:   r.Header.Get("CF-IPCountry"),
	}
}

// clientIP prefers the first forwarded address, falling back to the peer address
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitHeaders emits the standard quota headers for every limited path
func writeRateLimitHeaders(w http.ResponseWriter, decision domain.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime, 10))
	if decision.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfter, 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
