package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/service"
)

// Links is a mock implementation of service.Links
type Links struct {
	mock.Mock
}

// Create registers a short link for a URL
func (m *Links) Create(ctx context.Context, req domain.CreateLinkRequest, owner string) (*domain.Link, bool, error) {
	args := m.Called(ctx, req, owner)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Link), args.Bool(1), args.Error(2)
}

// Get retrieves a link by short code
func (m *Links) Get(ctx context.Context, shortCode string) (*domain.Link, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

// Resolver is a mock implementation of service.Resolver
type Resolver struct {
	mock.Mock
}

// Resolve looks up a short code
func (m *Resolver) Resolve(ctx context.Context, shortCode string, meta domain.RequestMeta) (service.Resolution, error) {
	args := m.Called(ctx, shortCode, meta)
	return args.Get(0).(service.Resolution), args.Error(1)
}

// Analytics is a mock implementation of service.Analytics
type Analytics struct {
	mock.Mock
}

// Aggregate builds the report for one short code
func (m *Analytics) Aggregate(ctx context.Context, shortCode string, period domain.Period, granularity domain.Granularity, filter domain.EventFilter) (*domain.AnalyticsReport, error) {
	args := m.Called(ctx, shortCode, period, granularity, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsReport), args.Error(1)
}

// ClickSink is a mock implementation of service.ClickSink
type ClickSink struct {
	mock.Mock
}

// Record receives one resolution attempt
func (m *ClickSink) Record(shortCode string, eventType domain.EventType, meta domain.RequestMeta) {
	m.Called(shortCode, eventType, meta)
}
