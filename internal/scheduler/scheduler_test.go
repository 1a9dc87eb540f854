package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/internal/vectorstore"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{})
}

type fakeStore struct {
	vectorstore.Store
	mu      sync.Mutex
	rebuilt []string
}

func (s *fakeStore) RebuildIndex(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuilt = append(s.rebuilt, table)
	return nil
}

func TestNew_RegistersIndexRebuildJob(t *testing.T) {
	store := &fakeStore{}
	sched, err := New(Config{Enabled: true, IndexRebuildCron: "@every 1s"}, store, nil, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	sched.Start(context.Background())
	defer sched.Stop()

	time.Sleep(1200 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.rebuilt) == 0 {
		t.Fatal("expected at least one index rebuild tick")
	}
}

func TestNew_RejectsInvalidCronExpression(t *testing.T) {
	store := &fakeStore{}
	_, err := New(Config{IndexRebuildCron: "not a cron expression"}, store, nil, testLogger())
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRunCacheEviction_SweepsExpiredEntries(t *testing.T) {
	store := &fakeStore{}
	cache := semanticcache.New(semanticcache.Options{})
	ctx := context.Background()
	cache.Put(ctx, "expired query", nil, map[string]any{}, nil, -time.Minute, 0.9)

	sched, err := New(Config{CacheEvictionCron: "@every 1s"}, store, cache, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	sched.runCacheEviction()

	if cache.Size() != 0 {
		t.Errorf("expected expired entry to be swept, size=%d", cache.Size())
	}
}

func TestRunIndexRebuild_CoversAllConfiguredTables(t *testing.T) {
	store := &fakeStore{}
	sched, err := New(Config{IndexTables: []string{"content_embeddings", "law_chain_embeddings"}}, store, nil, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	sched.runIndexRebuild()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.rebuilt) != 2 {
		t.Errorf("expected 2 tables rebuilt, got %d: %v", len(store.rebuilt), store.rebuilt)
	}
}
