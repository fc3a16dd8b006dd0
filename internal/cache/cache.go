// Package cache adds a local sqlite-backed response cache in front of a
// fetch.Fetcher. Each (skeleton, field group) pair is cached independently
// with a TTL; clearing the cache is always safe because entries are plain
// re-fetchable server responses.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
    skeleton_id INTEGER NOT NULL,
    field_group INTEGER NOT NULL,
    payload     TEXT    NOT NULL,
    fetched_at  INTEGER NOT NULL,
    PRIMARY KEY (skeleton_id, field_group)
);
`

// CachingFetcher wraps an inner Fetcher and serves cached records where
// possible. Errors from the inner fetcher are never cached.
type CachingFetcher struct {
	inner  fetch.Fetcher
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Open creates or opens the cache database at path.
func Open(path string, inner fetch.Fetcher, ttl time.Duration, logger *slog.Logger) (*CachingFetcher, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	logger.Debug("response cache open", "path", path, "ttl", ttl)
	return &CachingFetcher{
		inner:  inner,
		db:     db,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

// FetchFields serves cached records for the IDs it has fresh entries for and
// delegates the rest to the inner fetcher in one batch, caching its results.
func (c *CachingFetcher) FetchFields(ctx context.Context, ids []int64, group fetch.FieldGroup) (map[int64]*fetch.Record, error) {
	out := make(map[int64]*fetch.Record, len(ids))
	var missing []int64

	for _, id := range ids {
		rec, ok, err := c.lookup(ctx, id, group)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.Inc(metrics.CacheHits)
			out[id] = rec
			continue
		}
		metrics.Inc(metrics.CacheMisses)
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.FetchFields(ctx, missing, group)
	if err != nil {
		return nil, err
	}
	for id, rec := range fetched {
		if err := c.store(ctx, id, group, rec); err != nil {
			// A failed cache write must not fail the fetch.
			c.logger.Warn("caching response", "skeleton", id, "group", group.String(), "error", err)
		}
		out[id] = rec
	}
	return out, nil
}

func (c *CachingFetcher) lookup(ctx context.Context, id int64, group fetch.FieldGroup) (*fetch.Record, bool, error) {
	var (
		payload   string
		fetchedAt int64
	)
	row := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM responses WHERE skeleton_id = ? AND field_group = ?`,
		id, int(group))
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, nil
	}

	var rec fetch.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		// A corrupt entry is treated as a miss; the fetch will overwrite it.
		c.logger.Warn("corrupt cache entry", "skeleton", id, "group", group.String(), "error", err)
		return nil, false, nil
	}
	return &rec, true, nil
}

func (c *CachingFetcher) store(ctx context.Context, id int64, group fetch.FieldGroup, rec *fetch.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO responses (skeleton_id, field_group, payload, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (skeleton_id, field_group) DO UPDATE SET
		     payload = excluded.payload,
		     fetched_at = excluded.fetched_at`,
		id, int(group), string(payload), c.now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Invalidate removes the cached entry for one skeleton and group, forcing
// the next read through to the server. Used by Refresh paths.
func (c *CachingFetcher) Invalidate(ctx context.Context, id int64, group fetch.FieldGroup) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM responses WHERE skeleton_id = ? AND field_group = ?`, id, int(group))
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	return nil
}

// Clear removes every cached response.
func (c *CachingFetcher) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM responses`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (c *CachingFetcher) Close() error { return c.db.Close() }

var _ fetch.Fetcher = (*CachingFetcher)(nil)
