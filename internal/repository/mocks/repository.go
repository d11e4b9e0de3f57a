package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
)

// LinkRepository is a mock implementation of repository.LinkRepository
type LinkRepository struct {
	mock.Mock
}

// CreateLink writes a link with a not-exists guard on the short code
func (m *LinkRepository) CreateLink(ctx context.Context, link *domain.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

// GetLink retrieves a link by short code
func (m *LinkRepository) GetLink(ctx context.Context, shortCode string) (*domain.Link, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

// FindByURLHash queries the url-hash secondary index for an active link
func (m *LinkRepository) FindByURLHash(ctx context.Context, urlHash string, nowMillis int64) (*domain.Link, error) {
	args := m.Called(ctx, urlHash, nowMillis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

// RecordClick increments the click counter for a short code
func (m *LinkRepository) RecordClick(ctx context.Context, shortCode string, clickedAt int64) error {
	args := m.Called(ctx, shortCode, clickedAt)
	return args.Error(0)
}

// Close closes the repository connection
func (m *LinkRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ClickRepository is a mock implementation of repository.ClickRepository
type ClickRepository struct {
	mock.Mock
}

// AppendClick appends one event to the log
func (m *ClickRepository) AppendClick(ctx context.Context, event *domain.ClickEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// QueryClicks scans one page of events for a short code
func (m *ClickRepository) QueryClicks(ctx context.Context, shortCode string, startTime, endTime int64, token string, limit int) (*repository.ClickPage, error) {
	args := m.Called(ctx, shortCode, startTime, endTime, token, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ClickPage), args.Error(1)
}

// Close closes the repository connection
func (m *ClickRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RateLimitRepository is a mock implementation of repository.RateLimitRepository
type RateLimitRepository struct {
	mock.Mock
}

// IncrementCounter atomically adds delta and returns the post-increment count
func (m *RateLimitRepository) IncrementCounter(ctx context.Context, counter *domain.RateLimitCounter, delta int64) (int64, error) {
	args := m.Called(ctx, counter, delta)
	return args.Get(0).(int64), args.Error(1)
}

// GetCounter reads the current count without incrementing
func (m *RateLimitRepository) GetCounter(ctx context.Context, partitionKey string) (int64, error) {
	args := m.Called(ctx, partitionKey)
	return args.Get(0).(int64), args.Error(1)
}

// Close closes the repository connection
func (m *RateLimitRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
