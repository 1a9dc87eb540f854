// Package domain holds the wire/storage types shared across the C1-C6
// pipeline components: records persisted by the vector store and semantic
// cache, and the model descriptor consumed by the router and model manager.
package domain

import "time"

// EmbeddingRecord is a row of content_embeddings: one embedding vector for
// one piece of content, deduplicated on (ContentHash, ModelName, Version).
type EmbeddingRecord struct {
	RecordID         string
	ContentID        string
	ContentType      string
	ContentHash      string
	ContentText      string
	ContentMetadata  map[string]any
	Embedding        []float32
	ModelName        string
	EmbeddingVersion int
	NovelID          string
	ChainID          string
	CharacterID      string
	SceneID          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LawChainAspect names one of a law chain's three similarity vectors.
type LawChainAspect string

const (
	LawChainDescription LawChainAspect = "description"
	LawChainAbilities   LawChainAspect = "abilities"
	LawChainCombination LawChainAspect = "combination"
)

// LawChainEmbedding is a row of law_chain_embeddings: three vector columns
// (one per aspect) plus fixed-dimension domain-preference and cost-risk
// feature vectors, and a per-aspect threshold override map.
type LawChainEmbedding struct {
	RecordID           string
	ChainID            string
	NovelID            string
	Description        []float32
	Abilities          []float32
	Combination        []float32
	DomainPreference   []float32
	CostRisk           []float32
	ThresholdOverrides map[LawChainAspect]float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CharacterAspect names one of a character's three behavioral similarity
// vectors used by predict_character_behavior.
type CharacterAspect string

const (
	CharacterPersonality CharacterAspect = "personality"
	CharacterSkill       CharacterAspect = "skill"
	CharacterDecision    CharacterAspect = "decision"
)

// CharacterProfile is a row of character_semantic_profiles: personality,
// skill, and decision vectors plus an affinity vector.
type CharacterProfile struct {
	RecordID    string
	CharacterID string
	NovelID     string
	Personality []float32
	Skill       []float32
	Decision    []float32
	Affinity    []float32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CacheEntry is a row of semantic_cache: a cached model response keyed by
// exact query hash, with a query embedding for k=1 vector fallback lookup.
type CacheEntry struct {
	EntryID             string
	QueryText           string
	QueryHash           string
	QueryEmbedding       []float32
	ResponseData        map[string]any
	ResponseMetadata    map[string]any
	SimilarityThreshold float64
	HitCount            int
	LastHitAt           *time.Time
	ExpiresAt           time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SearchLog is an append-only row of vector_search_logs, recording one
// search_similar/search_law_chain/predict_character_behavior/batch_similarity
// invocation for audit and latency analysis.
type SearchLog struct {
	LogID        string
	Operation    string
	QueryHash    string
	ContentType  string
	Threshold    float64
	ResultCount  int
	LatencyMS    int64
	ModelUsed    string
	Cached       bool
	CreatedAt    time.Time
}

// ModelDescriptor describes one routable model: its provider, capacity,
// cost, and rate limits, as listed in the `models` config key.
type ModelDescriptor struct {
	ModelID         string
	Provider        string
	Tier            string
	Capabilities    []string
	ContextWindow   int
	MaxOutputTokens int
	InputPricePer1K  float64
	OutputPricePer1K float64
	RPM             int
	TPM             int
	RPD             int
	Priority        int
	Healthy         bool
}

// OperationResult is the common envelope every C6 operation returns:
// content/vectors/results, which model served it, token usage, cache
// status, and latency, per spec §6's operation-contract requirement.
type OperationResult struct {
	ModelUsed  string
	TokensUsed int
	Cached     bool
	LatencyMS  int64
}
