package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mgriffin/linkpulse/internal/domain"
	"github.com/mgriffin/linkpulse/internal/repository"
)

// Store implements the link, click, and rate-limit repositories on SQLite.
// Conditional puts map to guarded inserts, atomic adds to upserts, and the
// click log range scan to a rowid-keyed paginated query.
type Store struct {
	db *sql.DB
}

// New opens the database, applies migrations, and returns the store
func New(databasePath string) (*Store, error) {
	db, err := sql.Open("sqlite3", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps readers off the writers' lock on the hot redirect path
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}

	if err := s.runMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// CreateLink writes a link guarded by short-code uniqueness. The insert-or-
// nothing form closes the check-then-insert race: a second concurrent creator
// for the same code observes zero affected rows and gets ErrCodeExists.
func (s *Store) CreateLink(ctx context.Context, link *domain.Link) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO links (short_code, original_url, url_hash, created_at, expires_at, click_count, last_click_at, is_custom, created_by)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(short_code) DO NOTHING`,
		link.ShortCode, link.OriginalURL, link.URLHash, link.CreatedAt, link.ExpiresAt, link.IsCustom, link.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrCodeExists
	}

	return nil
}

// GetLink retrieves a link by its short code
func (s *Store) GetLink(ctx context.Context, shortCode string) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT short_code, original_url, url_hash, created_at, expires_at, click_count, last_click_at, is_custom, created_by
		FROM links WHERE short_code = ?`, shortCode)

	link, err := scanLink(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// FindByURLHash queries the url-hash index for a link still active at
// nowMillis. Expired rows are excluded here rather than by the caller: an
// expired predecessor would otherwise shadow its active replacement forever.
// Among active matches the oldest wins so repeated submissions keep resolving
// to the same code.
func (s *Store) FindByURLHash(ctx context.Context, urlHash string, nowMillis int64) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT short_code, original_url, url_hash, created_at, expires_at, click_count, last_click_at, is_custom, created_by
		FROM links
		WHERE url_hash = ? AND (expires_at = 0 OR expires_at > ?)
		ORDER BY created_at ASC LIMIT 1`, urlHash, nowMillis)

	link, err := scanLink(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to query url hash index: %w", err)
	}

	return link, nil
}

// RecordClick bumps the click counter and last-click timestamp in one statement
func (s *Store) RecordClick(ctx context.Context, shortCode string, clickedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE links SET click_count = click_count + 1, last_click_at = ? WHERE short_code = ?",
		clickedAt, shortCode)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return nil
}

// AppendClick appends one event to the click log
func (s *Store) AppendClick(ctx context.Context, event *domain.ClickEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clicks (short_code, ts, event_type, ip_hash, user_agent, referer, country, device, browser, browser_version, os, hour_partition, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ShortCode, event.Timestamp, string(event.EventType), event.IPHash,
		event.UserAgent, event.Referer, event.Country, event.Device,
		event.Browser, event.BrowserVersion, event.OS, event.HourPartition, event.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to append click event: %w", err)
	}
	return nil
}

// QueryClicks scans one page of events for a short code within
// [startTime, endTime). The continuation token is the rowid of the last event
// returned, so pages never overlap even while new events are appended.
func (s *Store) QueryClicks(ctx context.Context, shortCode string, startTime, endTime int64, token string, limit int) (*repository.ClickPage, error) {
	afterID := int64(0)
	if token != "" {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid continuation token: %w", err)
		}
		afterID = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, short_code, ts, event_type, ip_hash, user_agent, referer, country, device, browser, browser_version, os, hour_partition, expires_at
		FROM clicks
		WHERE short_code = ? AND ts >= ? AND ts < ? AND id > ?
		ORDER BY id ASC LIMIT ?`,
		shortCode, startTime, endTime, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query click events: %w", err)
	}
	defer rows.Close()

	page := &repository.ClickPage{}
	var lastID int64
	for rows.Next() {
		var event domain.ClickEvent
		var eventType string
		if err := rows.Scan(&lastID, &event.ShortCode, &event.Timestamp, &eventType,
			&event.IPHash, &event.UserAgent, &event.Referer, &event.Country,
			&event.Device, &event.Browser, &event.BrowserVersion, &event.OS,
			&event.HourPartition, &event.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan click event: %w", err)
		}
		event.EventType = domain.EventType(eventType)
		page.Events = append(page.Events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate click events: %w", err)
	}

	if len(page.Events) == limit {
		page.NextToken = strconv.FormatInt(lastID, 10)
	}

	return page, nil
}

// IncrementCounter applies the atomic add for a window counter and returns the
// post-increment value in a single round trip. Callers never read-modify-write.
func (s *Store) IncrementCounter(ctx context.Context, counter *domain.RateLimitCounter, delta int64) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_limits (partition_key, request_count, window_start, window_end, ttl)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(partition_key) DO UPDATE SET request_count = request_count + excluded.request_count
		RETURNING request_count`,
		counter.PartitionKey, delta, counter.WindowStart, counter.WindowEnd, counter.TTL)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return count, nil
}

// GetCounter reads a window counter without incrementing it
func (s *Store) GetCounter(ctx context.Context, partitionKey string) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT request_count FROM rate_limits WHERE partition_key = ?", partitionKey)

	var count int64
	if err := row.Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}

	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var link domain.Link
	if err := row.Scan(&link.ShortCode, &link.OriginalURL, &link.URLHash,
		&link.CreatedAt, &link.ExpiresAt, &link.ClickCount, &link.LastClickAt,
		&link.IsCustom, &link.CreatedBy); err != nil {
		return nil, err
	}
	return &link, nil
}

// Ensure Store implements the repository interfaces
var (
	_ repository.LinkRepository      = (*Store)(nil)
	_ repository.ClickRepository     = (*Store)(nil)
	_ repository.RateLimitRepository = (*Store)(nil)
)
