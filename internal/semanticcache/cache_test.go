package semanticcache

import (
	"context"
	"testing"
	"time"
)

func TestLookup_ExactHashHit(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "what is a law chain", []float32{1, 0, 0}, map[string]any{"text": "a law chain is..."}, nil, time.Minute, 0.9)

	entry, hit := c.Lookup(ctx, "what is a law chain", nil)
	if !hit {
		t.Fatal("expected exact hash hit")
	}
	if entry.HitCount != 2 {
		t.Errorf("HitCount = %d, want 2 (1 from put, 1 from lookup)", entry.HitCount)
	}
}

func TestLookup_NormalizesWhitespaceAndCase(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "  What IS a Law Chain  ", nil, map[string]any{}, nil, time.Minute, 0.9)

	_, hit := c.Lookup(ctx, "what is a law chain", nil)
	if !hit {
		t.Fatal("expected normalized query to hit the same entry")
	}
}

func TestLookup_ExpiredEntryMisses(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q1", nil, map[string]any{}, nil, -time.Minute, 0.9)

	_, hit := c.Lookup(ctx, "q1", nil)
	if hit {
		t.Error("expired entry should not hit")
	}
}

func TestLookup_VectorFallback(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "describe the fire law chain", []float32{1, 0, 0}, map[string]any{"text": "fire chain"}, nil, time.Minute, 0.8)

	entry, hit := c.Lookup(ctx, "tell me about the fire law chain", []float32{0.99, 0.01, 0})
	if !hit {
		t.Fatal("expected vector fallback hit for a similar query")
	}
	if entry.QueryText != "describe the fire law chain" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestLookup_VectorFallback_BelowThresholdMisses(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "describe the fire law chain", []float32{1, 0, 0}, map[string]any{}, nil, time.Minute, 0.99)

	_, hit := c.Lookup(ctx, "completely unrelated query", []float32{0, 1, 0})
	if hit {
		t.Error("orthogonal query should miss a high-threshold entry")
	}
}

func TestPut_IsIdempotentOnQueryHash(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q1", nil, map[string]any{"v": 1}, nil, time.Minute, 0.9)
	c.Put(ctx, "q1", nil, map[string]any{"v": 2}, nil, time.Minute, 0.9)

	if c.Size() != 1 {
		t.Fatalf("expected one entry after duplicate put, got %d", c.Size())
	}
	entry, _ := c.Lookup(ctx, "q1", nil)
	if entry.ResponseData["v"] != 2 {
		t.Error("expected second put's response to win")
	}
}

func TestSweep_RemovesExpiredEntriesOnly(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "expired", nil, map[string]any{}, nil, -time.Minute, 0.9)
	c.Put(ctx, "live", nil, map[string]any{}, nil, time.Minute, 0.9)

	removed := c.Sweep(ctx, time.Now(), 0)
	if removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size after sweep = %d, want 1", c.Size())
	}
}

func TestEviction_PrefersExpiredThenLowestHitCountThenOldest(t *testing.T) {
	c := New(Options{MaxSize: 2})
	ctx := context.Background()

	c.Put(ctx, "popular", nil, map[string]any{}, nil, time.Minute, 0.9)
	c.Lookup(ctx, "popular", nil)
	c.Lookup(ctx, "popular", nil)

	c.Put(ctx, "unpopular", nil, map[string]any{}, nil, time.Minute, 0.9)
	c.Put(ctx, "newcomer", nil, map[string]any{}, nil, time.Minute, 0.9)

	if c.Size() != 2 {
		t.Fatalf("expected eviction down to MaxSize=2, got %d", c.Size())
	}
	if _, hit := c.Lookup(ctx, "popular", nil); !hit {
		t.Error("popular entry should survive eviction")
	}
}
