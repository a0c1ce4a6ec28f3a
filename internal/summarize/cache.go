package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultCacheTTL bounds how long a cached summary is reused.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores generated summaries in badger. An empty dir keeps everything
// in memory.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens (or creates) the cache.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open summary cache: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Ping reports whether the cache is still open.
func (c *Cache) Ping(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("summary cache: closed")
	}
	return nil
}

// Get returns the cached summary for key.
func (c *Cache) Get(key string) (string, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("summary cache: read failed", "err", err)
		}
		return "", false
	}
	return string(out), true
}

// Set stores a summary under key.
func (c *Cache) Set(key, summary string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(summary)).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
}

// CacheKey derives a key from everything that determines a summary.
func CacheKey(backend string, transcript []byte, instruction string) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write(transcript)
	h.Write([]byte{0})
	h.Write([]byte(instruction))
	return "summary:" + hex.EncodeToString(h.Sum(nil))
}

// Cached decorates a Summarizer with the cache.
func Cached(s Summarizer, c *Cache) Summarizer {
	return &cached{next: s, cache: c}
}

type cached struct {
	next  Summarizer
	cache *Cache
}

func (c *cached) Name() string { return NameOf(c.next) }

func (c *cached) Summarize(ctx context.Context, transcript []byte, instruction string) (string, error) {
	key := CacheKey(NameOf(c.next), transcript, instruction)
	if out, ok := c.cache.Get(key); ok {
		slog.Debug("summary cache: hit", "key", key[:20])
		return out, nil
	}

	out, err := c.next.Summarize(ctx, transcript, instruction)
	if err != nil {
		return "", err
	}

	// Caching is best effort.
	if err := c.cache.Set(key, out); err != nil {
		slog.Warn("summary cache: write failed", "err", err)
	}
	return out, nil
}
