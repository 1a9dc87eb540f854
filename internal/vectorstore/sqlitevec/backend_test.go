package sqlitevec

import (
	"context"
	"errors"
	"testing"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	"github.com/ninedomain/loreengine/pkg/domain"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{Dimension: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestInsertContentEmbedding_DimensionMismatch(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.InsertContentEmbedding(context.Background(), &domain.EmbeddingRecord{
		ContentID: "c1", ContentHash: "h1", ModelName: "m1", Embedding: []float32{1, 2},
	}, 2)

	var pe *engineerr.PipelineError
	if !errors.As(err, &pe) || pe.Reason != engineerr.ReasonDimension {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestInsertContentEmbedding_UpsertsByHash(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	rec := &domain.EmbeddingRecord{ContentID: "c1", ContentType: "scene", ContentHash: "h1", ContentText: "v1", ModelName: "m1", Embedding: []float32{1, 0, 0, 0}}
	id1, err := b.InsertContentEmbedding(ctx, rec, 4)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec2 := &domain.EmbeddingRecord{ContentID: "c1", ContentType: "scene", ContentHash: "h1", ContentText: "v2", ModelName: "m1", Embedding: []float32{0, 1, 0, 0}}
	id2, err := b.InsertContentEmbedding(ctx, rec2, 4)
	if err != nil {
		t.Fatalf("insert again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same record_id on duplicate hash, got %s and %s", id1, id2)
	}

	got, err := b.GetContentEmbedding(ctx, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContentText != "v2" {
		t.Errorf("ContentText = %s, want v2 (should have been updated)", got.ContentText)
	}
}

func TestSearchSimilarContent_OrdersByScoreDesc(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"exact":    {1, 0, 0, 0},
		"close":    {0.9, 0.1, 0, 0},
		"orthogonal": {0, 1, 0, 0},
	}
	for id, v := range vectors {
		if _, err := b.InsertContentEmbedding(ctx, &domain.EmbeddingRecord{
			ContentID: id, ContentType: "scene", ContentHash: id, ModelName: "m1", Embedding: v,
		}, 4); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	results, err := b.SearchSimilarContent(ctx, []float32{1, 0, 0, 0}, vectorstore.SearchOptions{K: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Record.ContentID != "exact" {
		t.Errorf("top result = %s, want exact", results[0].Record.ContentID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by descending score: %+v", results)
		}
	}
}

func TestSearchSimilarContent_Threshold(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.InsertContentEmbedding(ctx, &domain.EmbeddingRecord{
		ContentID: "orthogonal", ContentType: "scene", ContentHash: "orthogonal", ModelName: "m1", Embedding: []float32{0, 1, 0, 0},
	}, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := b.SearchSimilarContent(ctx, []float32{1, 0, 0, 0}, vectorstore.SearchOptions{K: 10, Threshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected orthogonal vector to be excluded by threshold, got %d results", len(results))
	}
}

func TestLawChainEmbedding_InsertAndSearchPerAspect(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.InsertLawChainEmbedding(ctx, &domain.LawChainEmbedding{
		ChainID:     "chain-1",
		Description: []float32{1, 0, 0, 0},
		Abilities:   []float32{0, 1, 0, 0},
		Combination: []float32{0, 0, 1, 0},
	}, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := b.SearchLawChain(ctx, domain.LawChainAbilities, []float32{0, 1, 0, 0}, vectorstore.SearchOptions{K: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Score < 0.99 {
		t.Fatalf("expected one near-exact match on abilities aspect, got %+v", results)
	}

	if _, err := b.SearchLawChain(ctx, domain.LawChainAspect("bogus"), []float32{1, 0, 0, 0}, vectorstore.SearchOptions{}); err == nil {
		t.Fatal("expected error for unknown aspect")
	}
}

func TestCharacterProfile_InsertAndSearchPerAspect(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.InsertCharacterProfile(ctx, &domain.CharacterProfile{
		CharacterID: "char-1",
		Personality: []float32{1, 0, 0, 0},
		Skill:       []float32{0, 1, 0, 0},
		Decision:    []float32{0, 0, 1, 0},
	}, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := b.SearchCharacter(ctx, domain.CharacterDecision, []float32{0, 0, 1, 0}, vectorstore.SearchOptions{K: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Score < 0.99 {
		t.Fatalf("expected one near-exact match on decision aspect, got %+v", results)
	}
}

func TestLogSearch(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	err := b.LogSearch(ctx, &domain.SearchLog{
		Operation: "search_similar", QueryHash: "qh", ContentType: "scene", ResultCount: 3, LatencyMS: 12,
	})
	if err != nil {
		t.Fatalf("LogSearch: %v", err)
	}
}

func TestRebuildIndex_UnknownTable(t *testing.T) {
	b := newTestBackend(t)
	if err := b.RebuildIndex(context.Background(), "not_a_table"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestPredictCharacterBehavior_ExcludesTargetAndBucketsConfidence(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.InsertCharacterProfile(ctx, &domain.CharacterProfile{
		CharacterID: "self",
		Personality: []float32{1, 0, 0, 0},
	}, 4); err != nil {
		t.Fatalf("insert self: %v", err)
	}
	if _, err := b.InsertCharacterProfile(ctx, &domain.CharacterProfile{
		CharacterID: "other",
		Personality: []float32{1, 0, 0, 0},
	}, 4); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	results, err := b.PredictCharacterBehavior(ctx, "self", domain.CharacterPersonality, []float32{1, 0, 0, 0}, 0.5, vectorstore.SearchOptions{K: 10})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result (self excluded), got %d: %+v", len(results), results)
	}
	if results[0].Record.CharacterID != "other" {
		t.Errorf("expected only other character, got %s", results[0].Record.CharacterID)
	}
	if results[0].Confidence != 0.95 {
		t.Errorf("expected near-exact match to bucket to 0.95 confidence, got %v", results[0].Confidence)
	}
}

func TestBatchSimilarity_PreservesQueryIndexAndRank(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"a": {1, 0, 0, 0},
		"b": {0, 1, 0, 0},
	}
	for id, v := range vectors {
		if _, err := b.InsertContentEmbedding(ctx, &domain.EmbeddingRecord{
			ContentID: id, ContentType: "scene", ContentHash: id, ModelName: "m1", Embedding: v,
		}, 4); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	queries := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}
	results, err := b.BatchSimilarity(ctx, queries, 0.5, 5)
	if err != nil {
		t.Fatalf("BatchSimilarity: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].QueryIndex != 0 || results[0].RecordID != "a" {
		t.Errorf("result 0 = %+v, want query_index 0 matching record a", results[0])
	}
	if results[1].QueryIndex != 1 || results[1].RecordID != "b" {
		t.Errorf("result 1 = %+v, want query_index 1 matching record b", results[1])
	}
}

func TestEncodeDecodeEmbedding_RoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3, 0}
	got := decodeEmbedding(encodeEmbedding(v))
	if len(got) != len(v) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("round trip[%d] = %v, want %v", i, got[i], v[i])
		}
	}
}
