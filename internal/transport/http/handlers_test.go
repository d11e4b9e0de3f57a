package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/ratelimit"
	"github.com/mgriffin/linkpulse/internal/service"
	serviceMocks "github.com/mgriffin/linkpulse/internal/service/mocks"
)

// stubLimiter allows or denies everything and records the actions it saw
type stubLimiter struct {
	allow   bool
	actions []ratelimit.Action
}

func (l *stubLimiter) Check(ctx context.Context, identity string, action ratelimit.Action, role ratelimit.Role, increment int64) domain.RateLimitDecision {
	l.actions = append(l.actions, action)
	decision := domain.RateLimitDecision{
		Allowed:   l.allow,
		Limit:     10,
		Remaining: 9,
		ResetTime: 1748782800,
	}
	if !l.allow {
		decision.Remaining = 0
		decision.RetryAfter = 60
	}
	return decision
}

func (l *stubLimiter) Status(ctx context.Context, identity string, action ratelimit.Action, role ratelimit.Role) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{Allowed: true, Limit: 10, Remaining: 10, ResetTime: 1748782800}, nil
}

type handlerFixture struct {
	links    *serviceMocks.Links
	resolver *serviceMocks.Resolver
	stats    *serviceMocks.Analytics
	limiter  *stubLimiter
	server   *Server
}

func newFixture(t *testing.T, allow bool) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		links:    &serviceMocks.Links{},
		resolver: &serviceMocks.Resolver{},
		stats:    &serviceMocks.Analytics{},
		limiter:  &stubLimiter{allow: allow},
	}

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	handler := NewHandler(f.links, f.resolver, f.stats, f.limiter, metrics, "http://short.test", zerolog.Nop())
	f.server = NewServer(handler, metrics, registry, "0", false, zerolog.Nop())

	return f
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateLink(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMocks func(*serviceMocks.Links)
		wantStatus int
	}{
		{
			name: "created",
			body: `{"url": "https://example.com"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, domain.CreateLinkRequest{URL: "https://example.com"}, mock.AnythingOfType("string")).
					Return(&domain.Link{ShortCode: "aB3dE7gH", OriginalURL: "https://example.com"}, true, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "existing link returns 200",
			body: `{"url": "https://example.com"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
					Return(&domain.Link{ShortCode: "aB3dE7gH", OriginalURL: "https://example.com"}, false, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed JSON",
			body:       `{"url": `,
			setupMocks: func(links *serviceMocks.Links) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field rejected",
			body:       `{"url": "https://example.com", "surprise": true}`,
			setupMocks: func(links *serviceMocks.Links) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing url",
			body:       `{}`,
			setupMocks: func(links *serviceMocks.Links) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid URL",
			body: `{"url": "ftp://example.com"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
					Return(nil, false, domain.ErrInvalidURL)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid custom code",
			body: `{"url": "https://example.com", "custom_code": "x"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
					Return(nil, false, domain.ErrInvalidCode)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "custom code conflict",
			body: `{"url": "https://example.com", "custom_code": "taken1"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
					Return(nil, false, domain.ErrCodeExists)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "exhausted attempts",
			body: `{"url": "https://example.com"}`,
			setupMocks: func(links *serviceMocks.Links) {
				links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
					Return(nil, false, domain.ErrExhaustedAttempts)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			tt.setupMocks(f.links)

			req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(tt.body))
			rec := f.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
			f.links.AssertExpectations(t)
		})
	}
}

func TestHandler_CreateLink_ResponseBody(t *testing.T) {
	f := newFixture(t, true)
	f.links.On("Create", mock.Anything, mock.AnythingOfType("domain.CreateLinkRequest"), mock.AnythingOfType("string")).
		Return(&domain.Link{
			ShortCode:   "aB3dE7gH",
			OriginalURL: "https://example.com",
			CreatedAt:   1748779200000,
		}, true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url": "https://example.com"}`))
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.CreateLinkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "aB3dE7gH", resp.ShortCode)
	assert.Equal(t, "http://short.test/aB3dE7gH", resp.ShortURL)
	assert.True(t, resp.Created)
}

func TestHandler_CreateLink_RateLimited(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url": "https://example.com"}`))
	rec := f.do(req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	f.links.AssertNotCalled(t, "Create")
}

func TestHandler_Redirect(t *testing.T) {
	tests := []struct {
		name         string
		resolution   service.Resolution
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "active link redirects",
			resolution:   service.Resolution{Outcome: service.OutcomeActive, DestinationURL: "https://example.com/page"},
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://example.com/page",
		},
		{
			name:       "expired link is gone",
			resolution: service.Resolution{Outcome: service.OutcomeExpired},
			wantStatus: http.StatusGone,
		},
		{
			name:       "unknown code",
			resolution: service.Resolution{Outcome: service.OutcomeNotFound},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.resolver.On("Resolve", mock.Anything, "aB3dE7gH", mock.AnythingOfType("domain.RequestMeta")).
				Return(tt.resolution, nil)

			req := httptest.NewRequest(http.MethodGet, "/aB3dE7gH", nil)
			rec := f.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			assert.Contains(t, f.limiter.actions, ratelimit.ActionRedirect)
			f.resolver.AssertExpectations(t)
		})
	}
}

func TestHandler_Redirect_MetaFromHeaders(t *testing.T) {
	f := newFixture(t, true)

	var captured domain.RequestMeta
	f.resolver.On("Resolve", mock.Anything, "aB3dE7gH", mock.AnythingOfType("domain.RequestMeta")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(domain.RequestMeta)
		}).
		Return(service.Resolution{Outcome: service.OutcomeActive, DestinationURL: "https://example.com"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/aB3dE7gH", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://news.site")
	req.Header.Set("CF-IPCountry", "DE")
	f.do(req)

	assert.Equal(t, "203.0.113.7", captured.IP)
	assert.Equal(t, "curl/8.0", captured.UserAgent)
	assert.Equal(t, "https://news.site", captured.Referer)
	assert.Equal(t, "DE", captured.Country)
}

func TestHandler_GetLink(t *testing.T) {
	f := newFixture(t, true)
	f.links.On("Get", mock.Anything, "aB3dE7gH").
		Return(&domain.Link{ShortCode: "aB3dE7gH", OriginalURL: "https://example.com"}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/links/aB3dE7gH", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var link domain.Link
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	assert.Equal(t, "aB3dE7gH", link.ShortCode)
}

func TestHandler_GetLink_NotFound(t *testing.T) {
	f := newFixture(t, true)
	f.links.On("Get", mock.Anything, "missing9").
		Return(nil, domain.ErrLinkNotFound)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/links/missing9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Stats(t *testing.T) {
	f := newFixture(t, true)
	f.stats.On("Aggregate", mock.Anything, "aB3dE7gH", domain.Period7d, domain.GranularityDay, domain.FilterSuccess).
		Return(&domain.AnalyticsReport{ShortCode: "aB3dE7gH"}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/links/aB3dE7gH/stats?period=7d&granularity=day&filter=success", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.limiter.actions, ratelimit.ActionAnalytics)
	f.stats.AssertExpectations(t)
}

func TestHandler_Stats_Defaults(t *testing.T) {
	f := newFixture(t, true)
	f.stats.On("Aggregate", mock.Anything, "aB3dE7gH", domain.Period24h, domain.GranularityHour, domain.FilterAll).
		Return(&domain.AnalyticsReport{ShortCode: "aB3dE7gH"}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/links/aB3dE7gH/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.stats.AssertExpectations(t)
}

func TestHandler_Stats_BadParams(t *testing.T) {
	for _, query := range []string{"?period=2h", "?granularity=minute", "?filter=bots"} {
		f := newFixture(t, true)
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/links/aB3dE7gH/stats"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
		f.stats.AssertNotCalled(t, "Aggregate")
	}
}

func TestHandler_Limits(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/limits?action=create", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.RateLimitDecision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(10), decision.Limit)
}

func TestHandler_Limits_UnknownAction(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/limits?action=teleport", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Healthz(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/links/aB3dE7gH", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/links", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/api/links", want: "/api/links"},
		{path: "/api/links/aB3dE7gH", want: "/api/links/{code}"},
		{path: "/api/links/aB3dE7gH/stats", want: "/api/links/{code}/stats"},
		{path: "/api/limits", want: "/api/limits"},
		{path: "/healthz", want: "/healthz"},
		{path: "/metrics", want: "/metrics"},
		{path: "/aB3dE7gH", want: "/{code}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, routeLabel(tt.path), "path %s", tt.path)
	}
}
