package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mgriffin/linkpulse/internal/domain"
	repoMocks "github.com/mgriffin/linkpulse/internal/repository/mocks"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

func TestLimiter_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	restore := timeutil.Now
	timeutil.Now = timeutil.Fixed(now)
	defer func() { timeutil.Now = restore }()

	windowStart := now.Unix() - (now.Unix() % 3600)
	windowEnd := windowStart + 3600

	tests := []struct {
		name          string
		action        Action
		role          Role
		count         int64
		countErr      error
		wantAllowed   bool
		wantRemaining int64
		wantRetry     bool
	}{
		{
			name:          "first request allowed",
			action:        ActionCreate,
			role:          RoleFree,
			count:         1,
			wantAllowed:   true,
			wantRemaining: 9,
		},
		{
			name:          "request at the limit is allowed",
			action:        ActionCreate,
			role:          RoleFree,
			count:         10,
			wantAllowed:   true,
			wantRemaining: 0,
		},
		{
			name:          "request past the limit is rejected",
			action:        ActionCreate,
			role:          RoleFree,
			count:         11,
			wantAllowed:   false,
			wantRemaining: 0,
			wantRetry:     true,
		},
		{
			name:          "premium tier has its own quota",
			action:        ActionCreate,
			role:          RolePremium,
			count:         11,
			wantAllowed:   true,
			wantRemaining: 89,
		},
		{
			name:          "unknown role falls back to free tier",
			action:        ActionCreate,
			role:          Role("enterprise"),
			count:         11,
			wantAllowed:   false,
			wantRemaining: 0,
			wantRetry:     true,
		},
		{
			name:          "store error fails open",
			action:        ActionRedirect,
			role:          RoleFree,
			countErr:      assert.AnError,
			wantAllowed:   true,
			wantRemaining: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &repoMocks.RateLimitRepository{}
			repo.On("IncrementCounter", ctx, mock.AnythingOfType("*domain.RateLimitCounter"), int64(1)).
				Return(tt.count, tt.countErr)

			limiter := New(repo, "test-salt", zerolog.Nop())

			decision := limiter.Check(ctx, "caller-1", tt.action, tt.role, 1)

			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantRemaining, decision.Remaining)
			assert.Equal(t, windowEnd, decision.ResetTime)
			if tt.wantRetry {
				assert.Greater(t, decision.RetryAfter, int64(0))
			} else {
				assert.Zero(t, decision.RetryAfter)
			}

			repo.AssertExpectations(t)
		})
	}
}

// A run of limit+1 requests in one window yields exactly one rejection, the last
func TestLimiter_Check_ExactlyOneRejection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	restore := timeutil.Now
	timeutil.Now = timeutil.Fixed(now)
	defer func() { timeutil.Now = restore }()

	limit := policies[RoleFree][ActionCreate].Limit

	repo := &repoMocks.RateLimitRepository{}
	for i := int64(1); i <= limit+1; i++ {
		repo.On("IncrementCounter", ctx, mock.AnythingOfType("*domain.RateLimitCounter"), int64(1)).
			Return(i, nil).Once()
	}

	limiter := New(repo, "test-salt", zerolog.Nop())

	var rejections int
	for i := int64(0); i < limit+1; i++ {
		if !limiter.Check(ctx, "caller-1", ActionCreate, RoleFree, 1).Allowed {
			rejections++
		}
	}

	assert.Equal(t, 1, rejections)
}

func TestLimiter_Check_CounterFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	restore := timeutil.Now
	timeutil.Now = timeutil.Fixed(now)
	defer func() { timeutil.Now = restore }()

	windowStart := now.Unix() - (now.Unix() % 3600)

	var captured *domain.RateLimitCounter
	repo := &repoMocks.RateLimitRepository{}
	repo.On("IncrementCounter", ctx, mock.AnythingOfType("*domain.RateLimitCounter"), int64(1)).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.RateLimitCounter)
		}).
		Return(int64(1), nil)

	limiter := New(repo, "test-salt", zerolog.Nop())
	limiter.Check(ctx, "caller-1", ActionCreate, RoleFree, 1)

	require.NotNil(t, captured)
	assert.Equal(t, windowStart, captured.WindowStart)
	assert.Equal(t, windowStart+3600, captured.WindowEnd)
	assert.Equal(t, windowStart+3600+counterTTLSlack, captured.TTL)
	assert.Contains(t, captured.PartitionKey, ":create:")
	assert.NotContains(t, captured.PartitionKey, "caller-1")
}

func TestLimiter_Status(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	restore := timeutil.Now
	timeutil.Now = timeutil.Fixed(now)
	defer func() { timeutil.Now = restore }()

	tests := []struct {
		name          string
		count         int64
		wantAllowed   bool
		wantRemaining int64
	}{
		{name: "no usage yet", count: 0, wantAllowed: true, wantRemaining: 10},
		{name: "one below the limit", count: 9, wantAllowed: true, wantRemaining: 1},
		{name: "at the limit the next request would be rejected", count: 10, wantAllowed: false, wantRemaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &repoMocks.RateLimitRepository{}
			repo.On("GetCounter", ctx, mock.AnythingOfType("string")).
				Return(tt.count, nil)

			limiter := New(repo, "test-salt", zerolog.Nop())

			decision, err := limiter.Status(ctx, "caller-1", ActionCreate, RoleFree)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantRemaining, decision.Remaining)
		})
	}
}

func TestLimiter_Status_StoreError(t *testing.T) {
	ctx := context.Background()

	repo := &repoMocks.RateLimitRepository{}
	repo.On("GetCounter", ctx, mock.AnythingOfType("string")).
		Return(int64(0), assert.AnError)

	limiter := New(repo, "test-salt", zerolog.Nop())

	_, err := limiter.Status(ctx, "caller-1", ActionCreate, RoleFree)
	assert.Error(t, err)
}

func TestHashIdentity(t *testing.T) {
	h1 := HashIdentity("203.0.113.7", "salt-a")
	h2 := HashIdentity("203.0.113.7", "salt-a")
	h3 := HashIdentity("203.0.113.7", "salt-b")
	h4 := HashIdentity("203.0.113.8", "salt-a")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)
	assert.Len(t, h1, 16)
}

func TestPolicyFor(t *testing.T) {
	free := PolicyFor(RoleFree, ActionRedirect)
	assert.Equal(t, int64(1000), free.Limit)
	assert.Equal(t, time.Hour, free.Window)

	admin := PolicyFor(RoleAdmin, ActionRedirect)
	assert.Equal(t, int64(100000), admin.Limit)

	unknown := PolicyFor(Role("mystery"), ActionAnalytics)
	assert.Equal(t, PolicyFor(RoleFree, ActionAnalytics), unknown)

	// Unknown actions fall back to the redirect policy; a zero-width window
	// would divide by zero in the limiter's window arithmetic
	unknownAction := PolicyFor(RoleFree, Action("teleport"))
	assert.Equal(t, PolicyFor(RoleFree, ActionRedirect), unknownAction)
	assert.Positive(t, unknownAction.Window)
}

func TestLimiter_Check_UnknownAction(t *testing.T) {
	ctx := context.Background()

	repo := &repoMocks.RateLimitRepository{}
	repo.On("IncrementCounter", ctx, mock.AnythingOfType("*domain.RateLimitCounter"), int64(1)).
		Return(int64(1), nil)

	limiter := New(repo, "test-salt", zerolog.Nop())

	assert.NotPanics(t, func() {
		decision := limiter.Check(ctx, "caller-1", Action("teleport"), RoleFree, 1)
		assert.True(t, decision.Allowed)
	})
}
