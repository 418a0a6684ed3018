package cache

import (
    "context"
    "log/slog"
    "sync"
    "time"

    "github.com/rferdous/microtask-bot/internal/rowstore"
)

const DefaultTTL = 30 * time.Second

// TableCache is a time-boxed snapshot of one logical table. Reads are served
// from the snapshot until it goes stale; a failed reload keeps serving the
// previous snapshot so the bot stays usable while the store is down.
type TableCache struct {
    table rowstore.Table
    ttl   time.Duration
    name  string
    now   func() time.Time

    mu        sync.Mutex
    rows      []*rowstore.Row
    fetchedAt time.Time
}

func NewTableCache(name string, table rowstore.Table, ttl time.Duration) *TableCache {
    if ttl <= 0 {
        ttl = DefaultTTL
    }
    return &TableCache{table: table, ttl: ttl, name: name, now: time.Now}
}

// Rows returns the snapshot, reloading when forced, empty, or older than the
// TTL. Callers that just wrote a row must pass force=true so the next
// decision sees their write.
func (c *TableCache) Rows(ctx context.Context, force bool) ([]*rowstore.Row, error) {
    c.mu.Lock()
    defer c.mu.Unlock()

    fresh := len(c.rows) > 0 && c.now().Sub(c.fetchedAt) <= c.ttl
    if fresh && !force {
        return c.rows, nil
    }

    rows, err := c.table.LoadRows(ctx)
    if err != nil {
        if len(c.rows) > 0 {
            slog.Warn("cache refresh failed, serving stale snapshot", "table", c.name, "err", err)
            return c.rows, nil
        }
        return nil, err
    }
    c.rows = rows
    c.fetchedAt = c.now()
    slog.Debug("cache refreshed", "table", c.name, "rows", len(rows))
    return c.rows, nil
}

// Invalidate drops the snapshot so the next read reloads.
func (c *TableCache) Invalidate() {
    c.mu.Lock()
    c.rows = nil
    c.fetchedAt = time.Time{}
    c.mu.Unlock()
}

// Progress caches the derived x/y counter pair under the same TTL rules.
type Progress struct {
    reader rowstore.ProgressReader
    ttl    time.Duration
    now    func() time.Time

    mu        sync.Mutex
    x, y      int
    fetchedAt time.Time
}

func NewProgress(reader rowstore.ProgressReader, ttl time.Duration) *Progress {
    if ttl <= 0 {
        ttl = DefaultTTL
    }
    return &Progress{reader: reader, ttl: ttl, now: time.Now}
}

// Values never fails: on reload errors the last known pair is returned. The
// pair is display-only, so staleness here is acceptable.
func (p *Progress) Values(ctx context.Context) (int, int) {
    p.mu.Lock()
    defer p.mu.Unlock()

    if !p.fetchedAt.IsZero() && p.now().Sub(p.fetchedAt) <= p.ttl {
        return p.x, p.y
    }
    x, y, err := p.reader.LoadProgress(ctx)
    if err != nil {
        slog.Warn("progress refresh failed", "err", err)
        return p.x, p.y
    }
    p.x, p.y = x, y
    p.fetchedAt = p.now()
    return p.x, p.y
}

// Invalidate drops the cached pair.
func (p *Progress) Invalidate() {
    p.mu.Lock()
    p.fetchedAt = time.Time{}
    p.mu.Unlock()
}
