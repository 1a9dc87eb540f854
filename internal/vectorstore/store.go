// Package vectorstore implements C2: durable storage and similarity
// search over the content_embeddings, law_chain_embeddings,
// character_semantic_profiles, and vector_search_logs tables.
package vectorstore

import (
	"context"

	"github.com/ninedomain/loreengine/pkg/domain"
)

// SearchOptions narrows a similarity query.
type SearchOptions struct {
	K         int
	Threshold float64
	NovelID   string
	ContentTypes []string
}

// ScoredEmbedding pairs a content_embeddings row with its similarity score
// to the query vector. Score is cosine similarity clamped to [0, 1].
type ScoredEmbedding struct {
	Record domain.EmbeddingRecord
	Score  float64
}

// ScoredLawChain pairs a law_chain_embeddings row with its score against
// one of its three aspect vectors.
type ScoredLawChain struct {
	Record domain.LawChainEmbedding
	Aspect domain.LawChainAspect
	Score  float64
}

// ScoredCharacter pairs a character_semantic_profiles row with its score
// against one of its three aspect vectors. Confidence is set only by
// PredictCharacterBehavior, which buckets Score into one of four discrete
// confidence levels; plain SearchCharacter callers should use Score.
type ScoredCharacter struct {
	Record     domain.CharacterProfile
	Aspect     domain.CharacterAspect
	Score      float64
	Confidence float64
}

// ConfidenceBucket maps a raw similarity score into predict_character_behavior's
// four discrete confidence levels.
func ConfidenceBucket(score float64) float64 {
	switch {
	case score >= 0.9:
		return 0.95
	case score >= 0.8:
		return 0.85
	case score >= 0.7:
		return 0.75
	default:
		return 0.60
	}
}

// BatchSimilarityResult pairs one query's position in the input sequence
// with one of its matches against content_embeddings.
type BatchSimilarityResult struct {
	QueryIndex int
	RecordID   string
	Score      float64
}

// Store is C2's storage and similarity-search surface. Implementations
// (pgvector for production, sqlitevec for embedded/dev/test) must uphold:
// dimension checks are fatal (DimensionError, no partial write), hash
// uniqueness on (content_hash, model_name, embedding_version), NULL
// vectors excluded from search, and scores non-increasing in result order.
type Store interface {
	// InsertContentEmbedding upserts on (content_hash, model_name,
	// embedding_version); a duplicate insert returns the existing record_id.
	InsertContentEmbedding(ctx context.Context, rec *domain.EmbeddingRecord, dim int) (string, error)
	GetContentEmbedding(ctx context.Context, recordID string) (*domain.EmbeddingRecord, error)
	SearchSimilarContent(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredEmbedding, error)

	InsertLawChainEmbedding(ctx context.Context, rec *domain.LawChainEmbedding, dim int) (string, error)
	SearchLawChain(ctx context.Context, aspect domain.LawChainAspect, query []float32, opts SearchOptions) ([]ScoredLawChain, error)

	InsertCharacterProfile(ctx context.Context, rec *domain.CharacterProfile, dim int) (string, error)
	SearchCharacter(ctx context.Context, aspect domain.CharacterAspect, query []float32, opts SearchOptions) ([]ScoredCharacter, error)

	// PredictCharacterBehavior ranks every character other than targetCharID
	// by similarity to situationVec on one behavioral aspect, at or above
	// threshold. A character never predicts its own behavior: targetCharID
	// is always excluded from results.
	PredictCharacterBehavior(ctx context.Context, targetCharID string, aspect domain.CharacterAspect, situationVec []float32, threshold float64, opts SearchOptions) ([]ScoredCharacter, error)

	// BatchSimilarity runs search_similar once per entry in queries against
	// content_embeddings, returning results ordered by query_index then by
	// rank within that query.
	BatchSimilarity(ctx context.Context, queries [][]float32, threshold float64, perQueryLimit int) ([]BatchSimilarityResult, error)

	// LogSearch appends a row to the append-only vector_search_logs table.
	LogSearch(ctx context.Context, log *domain.SearchLog) error

	// RebuildIndex rebuilds the similarity index for table. Implementations
	// must keep other tables' indices online during the rebuild and leave
	// the previous index intact if the rebuild fails.
	RebuildIndex(ctx context.Context, table string) error

	Close() error
}

// Table names recognized by RebuildIndex.
const (
	TableContentEmbeddings         = "content_embeddings"
	TableLawChainEmbeddings        = "law_chain_embeddings"
	TableCharacterSemanticProfiles = "character_semantic_profiles"
)
