// Package semanticcache implements C3: an exact-hash fast path backed by a
// k=1 vector fallback over live entries, generalized from the dedupe
// cache's TTL-plus-size-bounded map into a full response cache.
package semanticcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ninedomain/loreengine/pkg/domain"
)

// Options configures a Cache.
type Options struct {
	// MaxSize caps live entries; Put evicts when exceeded, using the
	// expired-first / lowest-hit-count / oldest-last-hit order.
	MaxSize int

	// DefaultThreshold is used for Put when the caller supplies none.
	DefaultThreshold float64
}

// Persistence is the semantic_cache table of record. Cache uses it as a
// write-through log and loads live entries from it on Load; without one,
// Cache is purely in-memory (a single-process deployment or tests).
type Persistence interface {
	Upsert(ctx context.Context, entry *domain.CacheEntry) error
	DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int, error)
	LoadLive(ctx context.Context, now time.Time) ([]*domain.CacheEntry, error)
}

// Cache is C3's lookup/put/sweep surface over an in-process map of live
// entries, optionally mirrored to a Persistence backend.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry // keyed by query_hash
	opts    Options
	store   Persistence
}

// New creates an empty semantic cache.
func New(opts Options) *Cache {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = 0.92
	}
	return &Cache{
		entries: make(map[string]*domain.CacheEntry),
		opts:    opts,
	}
}

// WithPersistence attaches the durable semantic_cache backend.
func (c *Cache) WithPersistence(store Persistence) *Cache {
	c.store = store
	return c
}

// Load populates the in-memory map from the persistence backend's live
// entries, for a process startup after a restart.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.LoadLive(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.QueryHash] = e
	}
	return nil
}

// QueryHash computes the exact-match key for a query: H(normalize(q)).
// Normalization lowercases and collapses internal whitespace so trivially
// different phrasing of the same query still hits.
func QueryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lookup implements §4.3's two-step lookup: an exact query_hash match,
// falling back to a k=1 nearest-neighbor scan over live entries gated by
// each entry's own similarity_threshold.
func (c *Cache) Lookup(ctx context.Context, query string, queryEmbedding []float32) (*domain.CacheEntry, bool) {
	_ = ctx
	now := time.Now().UTC()
	hash := QueryHash(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[hash]; ok && entry.ExpiresAt.After(now) {
		entry.HitCount++
		entry.LastHitAt = &now
		return entry, true
	}

	if len(queryEmbedding) == 0 {
		return nil, false
	}

	var best *domain.CacheEntry
	var bestScore float64
	for _, entry := range c.entries {
		if !entry.ExpiresAt.After(now) || len(entry.QueryEmbedding) == 0 {
			continue
		}
		score := cosineSimilarity(queryEmbedding, entry.QueryEmbedding)
		if score < entry.SimilarityThreshold {
			continue
		}
		if best == nil || score > bestScore {
			best, bestScore = entry, score
		}
	}
	if best == nil {
		return nil, false
	}
	best.HitCount++
	best.LastHitAt = &now
	return best, true
}

// Put is idempotent on query_hash: a new entry starts hit_count at 1; an
// existing one has its response and expiry refreshed and hit_count bumped.
func (c *Cache) Put(ctx context.Context, query string, queryEmbedding []float32, response, metadata map[string]any, ttl time.Duration, threshold float64) *domain.CacheEntry {
	if threshold <= 0 {
		threshold = c.opts.DefaultThreshold
	}
	now := time.Now().UTC()
	hash := QueryHash(query)

	c.mu.Lock()
	entry, existed := c.entries[hash]
	if existed {
		entry.ResponseData = response
		entry.ResponseMetadata = metadata
		entry.ExpiresAt = now.Add(ttl)
		entry.SimilarityThreshold = threshold
		entry.HitCount++
		entry.UpdatedAt = now
	} else {
		entry = &domain.CacheEntry{
			EntryID:             hash,
			QueryText:           query,
			QueryHash:           hash,
			QueryEmbedding:      queryEmbedding,
			ResponseData:        response,
			ResponseMetadata:    metadata,
			SimilarityThreshold: threshold,
			HitCount:            1,
			ExpiresAt:           now.Add(ttl),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		c.entries[hash] = entry
		c.evictIfOverCapacity()
	}
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Upsert(ctx, entry)
	}
	return entry
}

// Sweep deletes expired entries in bounded batches, per §4.3's periodic
// eviction sweep. It returns the number of entries removed.
func (c *Cache) Sweep(ctx context.Context, now time.Time, batchSize int) int {
	c.mu.Lock()
	removed := 0
	for hash, entry := range c.entries {
		if batchSize > 0 && removed >= batchSize {
			break
		}
		if !entry.ExpiresAt.After(now) {
			delete(c.entries, hash)
			removed++
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		if n, err := c.store.DeleteExpired(ctx, now, batchSize); err == nil && n > removed {
			removed = n
		}
	}
	return removed
}

// Size returns the number of live entries, expired or not.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictIfOverCapacity enforces MaxSize using expired-first, then
// lowest-hit-count, then oldest-last-hit-at ordering. Must be called with
// c.mu held.
func (c *Cache) evictIfOverCapacity() {
	if c.opts.MaxSize <= 0 || len(c.entries) <= c.opts.MaxSize {
		return
	}

	now := time.Now().UTC()
	candidates := make([]*domain.CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aExpired, bExpired := !a.ExpiresAt.After(now), !b.ExpiresAt.After(now)
		if aExpired != bExpired {
			return aExpired
		}
		if a.HitCount != b.HitCount {
			return a.HitCount < b.HitCount
		}
		return lastHit(a).Before(lastHit(b))
	})

	excess := len(c.entries) - c.opts.MaxSize
	for i := 0; i < excess && i < len(candidates); i++ {
		delete(c.entries, candidates[i].QueryHash)
	}
}

func lastHit(e *domain.CacheEntry) time.Time {
	if e.LastHitAt != nil {
		return *e.LastHitAt
	}
	return e.CreatedAt
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
