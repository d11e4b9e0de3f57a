package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
	"github.com/mgriffin/linkpulse/internal/shortener"
	"github.com/mgriffin/linkpulse/internal/timeutil"
)

const (
	maxURLLength     = 2048
	generateAttempts = 5
)

// reservedCodes are path segments the registry refuses as custom codes,
// matched case-insensitively.
var reservedCodes = map[string]struct{}{
	"api":       {},
	"admin":     {},
	"www":       {},
	"app":       {},
	"login":     {},
	"signup":    {},
	"dashboard": {},
	"analytics": {},
	"stats":     {},
	"static":    {},
	"assets":    {},
	"health":    {},
	"healthz":   {},
	"metrics":   {},
	"help":      {},
	"support":   {},
	"about":     {},
	"terms":     {},
	"privacy":   {},
}

// LinksConfig holds link registry settings
type LinksConfig struct {
	// RestrictPrivateHosts rejects loopback and private-network destinations,
	// for deployments that must not be turned into an internal-network proxy.
	RestrictPrivateHosts bool
}

// linkService implements the Links interface
type linkService struct {
	repo      repository.LinkRepository
	generator shortener.Generator
	cfg       LinksConfig
	log       zerolog.Logger
	now       timeutil.NowFunc
}

// NewLinkService creates the link registry service
func NewLinkService(repo repository.LinkRepository, generator shortener.Generator, cfg LinksConfig, log zerolog.Logger) Links {
	return &linkService{
		repo:      repo,
		generator: generator,
		cfg:       cfg,
		log:       log.With().Str("component", "links").Logger(),
		now:       timeutil.Now,
	}
}

// Create registers a short link. Uniqueness is enforced by the repository's
// conditional write, not by a check-then-insert: a custom-code conflict is
// surfaced as domain.ErrCodeExists, and a generated-code collision is treated
// as a retry signal up to the attempt bound.
func (s *linkService) Create(ctx context.Context, req domain.CreateLinkRequest, owner string) (*domain.Link, bool, error) {
	if err := s.validateURL(req.URL); err != nil {
		return nil, false, err
	}

	now := s.now()
	link := &domain.Link{
		OriginalURL: req.URL,
		URLHash:     HashURL(req.URL),
		CreatedAt:   now.UnixMilli(),
		CreatedBy:   owner,
	}
	if req.ExpiresIn > 0 {
		link.ExpiresAt = now.UnixMilli() + req.ExpiresIn*1000
	}

	if req.CustomCode != "" {
		return s.createCustom(ctx, link, req.CustomCode)
	}

	// Idempotent create: a URL already registered without a custom code
	// resolves to its existing link. The index query excludes expired rows;
	// the Expired check backstops a row that lapsed between query and use.
	existing, err := s.repo.FindByURLHash(ctx, link.URLHash, now.UnixMilli())
	if err == nil && !existing.Expired(now.UnixMilli()) {
		return existing, false, nil
	}
	if err != nil && !errors.Is(err, domain.ErrLinkNotFound) {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	for attempt := 0; attempt < generateAttempts; attempt++ {
		code, err := s.generator.Generate(shortener.DefaultCodeLength)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate short code: %w", err)
		}

		link.ShortCode = code
		err = s.repo.CreateLink(ctx, link)
		if err == nil {
			return link, true, nil
		}
		if errors.Is(err, domain.ErrCodeExists) {
			s.log.Debug().Str("short_code", code).Int("attempt", attempt+1).Msg("generated code collided, retrying")
			continue
		}
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	return nil, false, domain.ErrExhaustedAttempts
}

// createCustom writes a link under a caller-supplied code. Conflicts are hard
// failures, never deduplicated or retried.
func (s *linkService) createCustom(ctx context.Context, link *domain.Link, code string) (*domain.Link, bool, error) {
	if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
		return nil, false, domain.ErrReservedCode
	}
	if !shortener.ValidCode(code) {
		return nil, false, fmt.Errorf("%w: custom code must be %d-%d characters from the code alphabet",
			domain.ErrInvalidCode, shortener.MinCodeLength, shortener.MaxCodeLength)
	}

	link.ShortCode = code
	link.IsCustom = true

	if err := s.repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, domain.ErrCodeExists) {
			return nil, false, domain.ErrCodeExists
		}
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	return link, true, nil
}

// Get retrieves a link by short code
func (s *linkService) Get(ctx context.Context, shortCode string) (*domain.Link, error) {
	return s.repo.GetLink(ctx, shortCode)
}

// validateURL checks scheme, length, and (when restricted) the destination host
func (s *linkService) validateURL(rawURL string) error {
	if rawURL == "" || len(rawURL) > maxURLLength {
		return fmt.Errorf("%w: url must be 1-%d characters", domain.ErrInvalidURL, maxURLLength)
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", domain.ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}

	if s.cfg.RestrictPrivateHosts {
		host := parsed.Hostname()
		if strings.EqualFold(host, "localhost") {
			return fmt.Errorf("%w: loopback hosts are not allowed", domain.ErrInvalidURL)
		}
		if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
			return fmt.Errorf("%w: private-network hosts are not allowed", domain.ErrInvalidURL)
		}
	}

	return nil
}

// HashURL returns the deterministic hash used for URL deduplication
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Ensure linkService implements the Links interface
var _ Links = (*linkService)(nil)
