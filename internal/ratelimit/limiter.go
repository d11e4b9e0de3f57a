package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

const counterTTLSlack = 3600 // counter rows linger one hour past the window end

// Limiter enforces fixed-window quotas through the store's atomic add.
// Correctness under concurrency rests entirely on that primitive: there is no
// client-side locking and no read-modify-write.
type Limiter struct {
	repo repository.RateLimitRepository
	salt string
	log  zerolog.Logger
	now  timeutil.NowFunc
}

// New creates a limiter. The salt is mixed into identity hashes so raw IPs and
// user ids never appear in partition keys.
func New(repo repository.RateLimitRepository, salt string, log zerolog.Logger) *Limiter {
	return &Limiter{
		repo: repo,
		salt: salt,
		log:  log.With().Str("component", "ratelimit").Logger(),
		now:  timeutil.Now,
	}
}

// Check applies one request against the caller's quota. The counter is
// incremented first and the post-increment value compared against the limit,
// so the request that crosses the threshold is itself counted and rejected: a
// run of N+1 requests against a quota of N yields exactly one rejection, the
// last.
//
// Fail-open: a store error allows the request and reports the full quota as
// remaining, so a store outage never becomes a self-inflicted denial of
// service.
func (l *Limiter) Check(ctx context.Context, identity string, action Action, role Role, increment int64) domain.RateLimitDecision {
	if increment <= 0 {
		increment = 1
	}

	policy := PolicyFor(role, action)
	now := l.now().Unix()
	windowSecs := int64(policy.Window.Seconds())
	windowStart := now - (now % windowSecs)
	windowEnd := windowStart + windowSecs

	counter := &domain.RateLimitCounter{
		PartitionKey: l.partitionKey(identity, action, windowStart),
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		TTL:          windowEnd + counterTTLSlack,
	}

	count, err := l.repo.IncrementCounter(ctx, counter, increment)
	if err != nil {
		l.log.Error().Err(err).Str("action", string(action)).Msg("counter increment failed, allowing request")
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit,
			ResetTime: windowEnd,
		}
	}

	decision := domain.RateLimitDecision{
		Allowed:   count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: max(0, policy.Limit-count),
		ResetTime: windowEnd,
	}
	if !decision.Allowed {
		decision.RetryAfter = max(1, windowEnd-now)
	}

	return decision
}

// Status reads the caller's current standing without consuming quota, for
// status UIs. Unlike Check it compares with strict less-than, since no request
// is being admitted.
func (l *Limiter) Status(ctx context.Context, identity string, action Action, role Role) (domain.RateLimitDecision, error) {
	policy := PolicyFor(role, action)
	now := l.now().Unix()
	windowSecs := int64(policy.Window.Seconds())
	windowStart := now - (now % windowSecs)
	windowEnd := windowStart + windowSecs

	count, err := l.repo.GetCounter(ctx, l.partitionKey(identity, action, windowStart))
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return domain.RateLimitDecision{
		Allowed:   count < policy.Limit,
		Limit:     policy.Limit,
		Remaining: max(0, policy.Limit-count),
		ResetTime: windowEnd,
	}, nil
}

// partitionKey builds "{hashedIdentity}:{action}:{windowStart}" so every
// caller in the same window contends on the same counter row.
func (l *Limiter) partitionKey(identity string, action Action, windowStart int64) string {
	return fmt.Sprintf("%s:%s:%d", HashIdentity(identity, l.salt), action, windowStart)
}

// HashIdentity salts and hashes a raw identity (IP or user id). The truncated
// digest keeps key cardinality bounded while staying one-way.
func HashIdentity(identity, salt string) string {
	sum := sha256.Sum256([]byte(salt + identity))
	return hex.EncodeToString(sum[:])[:16]
}
