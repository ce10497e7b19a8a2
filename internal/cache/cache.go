// Package cache keeps fetched repository documents in a SQLite database so
// that revisiting a directory or a file does not hit the server again.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/metrics"
)

// DefaultTTL is how long a cached response is served before refetching.
const DefaultTTL = 10 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	url        TEXT PRIMARY KEY,
	body       BLOB,
	fetched_at INTEGER NOT NULL
)`

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the freshness window. Zero or negative keeps the default.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a logger for cache activity.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNamespace scopes every entry to ns, typically the server's base URL,
// so one database can serve several servers whose paths overlap.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.ns = ""
		if ns != "" {
			s.ns = ns + "|"
		}
	}
}

// Store is a read-through cache in front of another RawFetcher.
type Store struct {
	db     *sql.DB
	path   string
	next   api.RawFetcher
	ns     string
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// Open opens (creating if needed) the cache database at path. An empty path
// keeps the cache in memory for the lifetime of the process.
func Open(path string, next api.RawFetcher, opts ...Option) (*Store, error) {
	if next == nil {
		return nil, fmt.Errorf("cache: upstream fetcher is nil")
	}

	dsn := ":memory:"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		next:   next,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Fetch returns the cached body for url while it is fresh, otherwise fetches
// it upstream and stores it. Upstream errors are never cached.
func (s *Store) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := s.ns + url
	body, fetchedAt, err := s.lookup(ctx, key)
	switch {
	case err == nil && s.now().Sub(fetchedAt) < s.ttl:
		metrics.ResponseCache.Hit()
		s.logger.Printf("cache hit %s", url)
		return body, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		s.logger.Printf("cache lookup %s failed: %v", url, err)
	}
	metrics.ResponseCache.Miss()

	body, err = s.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, key, body); err != nil {
		// A write failure only costs a refetch next time.
		s.logger.Printf("cache store %s failed: %v", url, err)
	}
	return body, nil
}

func (s *Store) lookup(ctx context.Context, key string) ([]byte, time.Time, error) {
	var body []byte
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM responses WHERE url = ?`, key,
	).Scan(&body, &fetchedAt)
	if err != nil {
		return nil, time.Time{}, err
	}
	return body, time.Unix(0, fetchedAt), nil
}

func (s *Store) store(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (url, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		key, body, s.now().UnixNano(),
	)
	return err
}

// Invalidate drops every entry of the namespace whose URL starts with
// prefix. An empty prefix clears the namespace. It returns the number of
// entries removed.
func (s *Store) Invalidate(ctx context.Context, prefix string) (int64, error) {
	full := s.ns + prefix
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM responses WHERE substr(url, 1, ?) = ?`, utf8.RuneCountInString(full), full)
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Printf("cache invalidated %d entries (prefix %q)", n, prefix)
	return n, nil
}

// Prune removes entries older than the TTL.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached entries in the namespace.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM responses WHERE substr(url, 1, ?) = ?`, utf8.RuneCountInString(s.ns), s.ns,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// String describes the cache location.
func (s *Store) String() string {
	if s.path == "" {
		return "sqlite(memory)"
	}
	return "sqlite(" + strings.TrimSpace(s.path) + ")"
}
