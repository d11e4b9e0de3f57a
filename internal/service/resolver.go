package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

// resolverService implements the Resolver interface
type resolverService struct {
	repo repository.LinkRepository
	sink ClickSink
	log  zerolog.Logger
	now  timeutil.NowFunc
}

// NewResolverService creates the redirect resolver. The sink receives one
// event per resolution attempt, asynchronously.
func NewResolverService(repo repository.LinkRepository, sink ClickSink, log zerolog.Logger) Resolver {
	return &resolverService{
		repo: repo,
		sink: sink,
		log:  log.With().Str("component", "resolver").Logger(),
		now:  timeutil.Now,
	}
}

// Resolve maps a short code to one of three terminal states. Redirect latency
// is the primary SLA here: click recording and counter updates are handed to
// the sink and never awaited, so their failures cannot change the outcome the
// caller sees. Only a store failure on the lookup itself is an error.
func (s *resolverService) Resolve(ctx context.Context, shortCode string, meta domain.RequestMeta) (Resolution, error) {
	link, err := s.repo.GetLink(ctx, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			s.sink.Record(shortCode, domain.EventNotFound, meta)
			return Resolution{Outcome: OutcomeNotFound}, nil
		}
		return Resolution{}, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	if link.Expired(s.now().UnixMilli()) {
		s.sink.Record(shortCode, domain.EventExpired, meta)
		return Resolution{Outcome: OutcomeExpired}, nil
	}

	s.sink.Record(shortCode, domain.EventSuccess, meta)
	return Resolution{Outcome: OutcomeActive, DestinationURL: link.OriginalURL}, nil
}

// Ensure resolverService implements the Resolver interface
var _ Resolver = (*resolverService)(nil)
