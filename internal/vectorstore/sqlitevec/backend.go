// Package sqlitevec implements C2's Store over SQLite for embedded, dev,
// and test use: plain tables with in-Go brute-force cosine similarity,
// since the vec0 extension is not loadable from modernc.org/sqlite's
// pure-Go driver.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	"github.com/ninedomain/loreengine/pkg/domain"
)

// Backend implements vectorstore.Store over a SQLite file or :memory: db.
type Backend struct {
	db        *sql.DB
	dimension int
}

// Config configures a Backend.
type Config struct {
	Path      string // ":memory:" if empty
	Dimension int
}

// New opens the database and creates its tables if they don't exist.
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b := &Backend{db: db, dimension: cfg.Dimension}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS content_embeddings (
			record_id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			content_text TEXT NOT NULL,
			content_metadata TEXT,
			embedding BLOB,
			model_name TEXT NOT NULL,
			embedding_version INTEGER NOT NULL DEFAULT 1,
			novel_id TEXT,
			chain_id TEXT,
			character_id TEXT,
			scene_id TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (content_hash, model_name, embedding_version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_embeddings_novel ON content_embeddings(novel_id)`,
		`CREATE TABLE IF NOT EXISTS law_chain_embeddings (
			record_id TEXT PRIMARY KEY,
			chain_id TEXT NOT NULL UNIQUE,
			novel_id TEXT,
			description BLOB,
			abilities BLOB,
			combination BLOB,
			domain_preference BLOB,
			cost_risk BLOB,
			threshold_overrides TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS character_semantic_profiles (
			record_id TEXT PRIMARY KEY,
			character_id TEXT NOT NULL UNIQUE,
			novel_id TEXT,
			personality BLOB,
			skill BLOB,
			decision BLOB,
			affinity BLOB,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS vector_search_logs (
			log_id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			query_hash TEXT,
			content_type TEXT,
			threshold REAL,
			result_count INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			model_used TEXT,
			cached INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME
		)`,
	}
	for _, s := range stmts {
		if _, err := b.db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) checkDimension(n int) error {
	if n != b.dimension {
		return engineerr.DimensionError(n, b.dimension)
	}
	return nil
}

// InsertContentEmbedding upserts by (content_hash, model_name, embedding_version).
func (b *Backend) InsertContentEmbedding(ctx context.Context, rec *domain.EmbeddingRecord, dim int) (string, error) {
	if err := b.checkDimension(dim); err != nil {
		return "", err
	}

	var existing string
	err := b.db.QueryRowContext(ctx, `
		SELECT record_id FROM content_embeddings
		WHERE content_hash = ? AND model_name = ? AND embedding_version = ?
	`, rec.ContentHash, rec.ModelName, rec.EmbeddingVersion).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if rec.RecordID == "" {
			rec.RecordID = uuid.New().String()
		}
	case err != nil:
		return "", engineerr.StorageError("lookup content_embeddings", err)
	default:
		rec.RecordID = existing
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	metadata, err := json.Marshal(rec.ContentMetadata)
	if err != nil {
		return "", engineerr.StorageError("marshal content_metadata", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO content_embeddings
			(record_id, content_id, content_type, content_hash, content_text,
			 content_metadata, embedding, model_name, embedding_version,
			 novel_id, chain_id, character_id, scene_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		rec.RecordID, rec.ContentID, rec.ContentType, rec.ContentHash, rec.ContentText,
		string(metadata), encodeEmbedding(rec.Embedding), rec.ModelName, rec.EmbeddingVersion,
		rec.NovelID, rec.ChainID, rec.CharacterID, rec.SceneID, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert content_embeddings", err)
	}
	return rec.RecordID, nil
}

// GetContentEmbedding reads one content_embeddings row by ID.
func (b *Backend) GetContentEmbedding(ctx context.Context, recordID string) (*domain.EmbeddingRecord, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT record_id, content_id, content_type, content_hash, content_text,
		       content_metadata, embedding, model_name, embedding_version,
		       novel_id, chain_id, character_id, scene_id, created_at, updated_at
		FROM content_embeddings WHERE record_id = ?
	`, recordID)

	var rec domain.EmbeddingRecord
	var metadataJSON sql.NullString
	var embeddingBlob []byte
	var novelID, chainID, characterID, sceneID sql.NullString

	if err := row.Scan(
		&rec.RecordID, &rec.ContentID, &rec.ContentType, &rec.ContentHash, &rec.ContentText,
		&metadataJSON, &embeddingBlob, &rec.ModelName, &rec.EmbeddingVersion,
		&novelID, &chainID, &characterID, &sceneID, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, engineerr.StorageError("scan content_embeddings", err)
	}
	rec.NovelID, rec.ChainID, rec.CharacterID, rec.SceneID = novelID.String, chainID.String, characterID.String, sceneID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &rec.ContentMetadata)
	}
	rec.Embedding = decodeEmbedding(embeddingBlob)
	return &rec, nil
}

// SearchSimilarContent brute-force-scores every row with a non-null
// embedding and returns the top K.
func (b *Backend) SearchSimilarContent(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredEmbedding, error) {
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}

	sqlStr := `
		SELECT record_id, content_id, content_type, content_hash, content_text,
		       content_metadata, embedding, model_name, embedding_version,
		       novel_id, chain_id, character_id, scene_id, created_at, updated_at
		FROM content_embeddings WHERE embedding IS NOT NULL
	`
	var args []any
	if opts.NovelID != "" {
		sqlStr += " AND novel_id = ?"
		args = append(args, opts.NovelID)
	}
	if len(opts.ContentTypes) == 1 {
		sqlStr += " AND content_type = ?"
		args = append(args, opts.ContentTypes[0])
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("search content_embeddings", err)
	}
	defer rows.Close()

	contentTypeSet := toSet(opts.ContentTypes)
	var scored []vectorstore.ScoredEmbedding
	for rows.Next() {
		var rec domain.EmbeddingRecord
		var metadataJSON sql.NullString
		var embeddingBlob []byte
		var novelID, chainID, characterID, sceneID sql.NullString

		if err := rows.Scan(
			&rec.RecordID, &rec.ContentID, &rec.ContentType, &rec.ContentHash, &rec.ContentText,
			&metadataJSON, &embeddingBlob, &rec.ModelName, &rec.EmbeddingVersion,
			&novelID, &chainID, &characterID, &sceneID, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, engineerr.StorageError("scan content_embeddings search row", err)
		}
		if len(contentTypeSet) > 1 && !contentTypeSet[rec.ContentType] {
			continue
		}
		rec.NovelID, rec.ChainID, rec.CharacterID, rec.SceneID = novelID.String, chainID.String, characterID.String, sceneID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &rec.ContentMetadata)
		}
		rec.Embedding = decodeEmbedding(embeddingBlob)

		score := cosineSimilarity(query, rec.Embedding)
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		scored = append(scored, vectorstore.ScoredEmbedding{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate content_embeddings search", err)
	}

	sortEmbeddingsByScoreDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// InsertLawChainEmbedding upserts a law chain's three aspect vectors.
func (b *Backend) InsertLawChainEmbedding(ctx context.Context, rec *domain.LawChainEmbedding, dim int) (string, error) {
	for _, v := range [][]float32{rec.Description, rec.Abilities, rec.Combination} {
		if len(v) > 0 {
			if err := b.checkDimension(len(v)); err != nil {
				return "", err
			}
		}
	}
	_ = dim

	var existing string
	err := b.db.QueryRowContext(ctx, `SELECT record_id FROM law_chain_embeddings WHERE chain_id = ?`, rec.ChainID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if rec.RecordID == "" {
			rec.RecordID = uuid.New().String()
		}
	case err != nil:
		return "", engineerr.StorageError("lookup law_chain_embeddings", err)
	default:
		rec.RecordID = existing
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	thresholds, err := json.Marshal(rec.ThresholdOverrides)
	if err != nil {
		return "", engineerr.StorageError("marshal threshold_overrides", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO law_chain_embeddings
			(record_id, chain_id, novel_id, description, abilities, combination,
			 domain_preference, cost_risk, threshold_overrides, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`,
		rec.RecordID, rec.ChainID, rec.NovelID,
		encodeEmbedding(rec.Description), encodeEmbedding(rec.Abilities), encodeEmbedding(rec.Combination),
		encodeEmbedding(rec.DomainPreference), encodeEmbedding(rec.CostRisk),
		string(thresholds), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert law_chain_embeddings", err)
	}
	return rec.RecordID, nil
}

// SearchLawChain brute-force-scores law chains on one aspect vector.
func (b *Backend) SearchLawChain(ctx context.Context, aspect domain.LawChainAspect, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredLawChain, error) {
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}

	sqlStr := `
		SELECT record_id, chain_id, novel_id, description, abilities, combination,
		       domain_preference, cost_risk, threshold_overrides, created_at, updated_at
		FROM law_chain_embeddings
	`
	var args []any
	if opts.NovelID != "" {
		sqlStr += " WHERE novel_id = ?"
		args = append(args, opts.NovelID)
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("search law_chain_embeddings", err)
	}
	defer rows.Close()

	var scored []vectorstore.ScoredLawChain
	for rows.Next() {
		var rec domain.LawChainEmbedding
		var novelID sql.NullString
		var description, abilities, combination, domainPref, costRisk []byte
		var thresholdsJSON sql.NullString

		if err := rows.Scan(
			&rec.RecordID, &rec.ChainID, &novelID, &description, &abilities, &combination,
			&domainPref, &costRisk, &thresholdsJSON, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, engineerr.StorageError("scan law_chain_embeddings search row", err)
		}
		rec.NovelID = novelID.String
		rec.Description, rec.Abilities, rec.Combination = decodeEmbedding(description), decodeEmbedding(abilities), decodeEmbedding(combination)
		rec.DomainPreference, rec.CostRisk = decodeEmbedding(domainPref), decodeEmbedding(costRisk)
		if thresholdsJSON.Valid && thresholdsJSON.String != "" {
			_ = json.Unmarshal([]byte(thresholdsJSON.String), &rec.ThresholdOverrides)
		}

		aspectVec, err := selectLawChainAspect(&rec, aspect)
		if err != nil {
			return nil, err
		}
		if len(aspectVec) == 0 {
			continue
		}
		score := cosineSimilarity(query, aspectVec)
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		scored = append(scored, vectorstore.ScoredLawChain{Record: rec, Aspect: aspect, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate law_chain_embeddings search", err)
	}

	sortLawChainsByScoreDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func selectLawChainAspect(rec *domain.LawChainEmbedding, aspect domain.LawChainAspect) ([]float32, error) {
	switch aspect {
	case domain.LawChainDescription:
		return rec.Description, nil
	case domain.LawChainAbilities:
		return rec.Abilities, nil
	case domain.LawChainCombination:
		return rec.Combination, nil
	default:
		return nil, engineerr.InvalidRequestError("unknown law chain aspect: " + string(aspect))
	}
}

// InsertCharacterProfile upserts a character's three behavioral vectors.
func (b *Backend) InsertCharacterProfile(ctx context.Context, rec *domain.CharacterProfile, dim int) (string, error) {
	for _, v := range [][]float32{rec.Personality, rec.Skill, rec.Decision} {
		if len(v) > 0 {
			if err := b.checkDimension(len(v)); err != nil {
				return "", err
			}
		}
	}
	_ = dim

	var existing string
	err := b.db.QueryRowContext(ctx, `SELECT record_id FROM character_semantic_profiles WHERE character_id = ?`, rec.CharacterID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if rec.RecordID == "" {
			rec.RecordID = uuid.New().String()
		}
	case err != nil:
		return "", engineerr.StorageError("lookup character_semantic_profiles", err)
	default:
		rec.RecordID = existing
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO character_semantic_profiles
			(record_id, character_id, novel_id, personality, skill, decision, affinity, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
	`,
		rec.RecordID, rec.CharacterID, rec.NovelID,
		encodeEmbedding(rec.Personality), encodeEmbedding(rec.Skill), encodeEmbedding(rec.Decision), encodeEmbedding(rec.Affinity),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert character_semantic_profiles", err)
	}
	return rec.RecordID, nil
}

// SearchCharacter brute-force-scores characters on one behavioral aspect.
func (b *Backend) SearchCharacter(ctx context.Context, aspect domain.CharacterAspect, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredCharacter, error) {
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}

	sqlStr := `
		SELECT record_id, character_id, novel_id, personality, skill, decision, affinity, created_at, updated_at
		FROM character_semantic_profiles
	`
	var args []any
	if opts.NovelID != "" {
		sqlStr += " WHERE novel_id = ?"
		args = append(args, opts.NovelID)
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("search character_semantic_profiles", err)
	}
	defer rows.Close()

	var scored []vectorstore.ScoredCharacter
	for rows.Next() {
		var rec domain.CharacterProfile
		var novelID sql.NullString
		var personality, skill, decision, affinity []byte

		if err := rows.Scan(
			&rec.RecordID, &rec.CharacterID, &novelID, &personality, &skill, &decision, &affinity,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, engineerr.StorageError("scan character_semantic_profiles search row", err)
		}
		rec.NovelID = novelID.String
		rec.Personality, rec.Skill, rec.Decision, rec.Affinity = decodeEmbedding(personality), decodeEmbedding(skill), decodeEmbedding(decision), decodeEmbedding(affinity)

		aspectVec, err := selectCharacterAspect(&rec, aspect)
		if err != nil {
			return nil, err
		}
		if len(aspectVec) == 0 {
			continue
		}
		score := cosineSimilarity(query, aspectVec)
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		scored = append(scored, vectorstore.ScoredCharacter{Record: rec, Aspect: aspect, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate character_semantic_profiles search", err)
	}

	sortCharactersByScoreDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func selectCharacterAspect(rec *domain.CharacterProfile, aspect domain.CharacterAspect) ([]float32, error) {
	switch aspect {
	case domain.CharacterPersonality:
		return rec.Personality, nil
	case domain.CharacterSkill:
		return rec.Skill, nil
	case domain.CharacterDecision:
		return rec.Decision, nil
	default:
		return nil, engineerr.InvalidRequestError("unknown character aspect: " + string(aspect))
	}
}

// PredictCharacterBehavior brute-force-scores every character other than
// targetCharID on one behavioral aspect, bucketing each raw score into one
// of four discrete confidence levels.
func (b *Backend) PredictCharacterBehavior(ctx context.Context, targetCharID string, aspect domain.CharacterAspect, situationVec []float32, threshold float64, opts vectorstore.SearchOptions) ([]vectorstore.ScoredCharacter, error) {
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}

	sqlStr := `
		SELECT record_id, character_id, novel_id, personality, skill, decision, affinity, created_at, updated_at
		FROM character_semantic_profiles WHERE character_id != ?
	`
	args := []any{targetCharID}
	if opts.NovelID != "" {
		sqlStr += " AND novel_id = ?"
		args = append(args, opts.NovelID)
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("predict character behavior", err)
	}
	defer rows.Close()

	var scored []vectorstore.ScoredCharacter
	for rows.Next() {
		var rec domain.CharacterProfile
		var novelID sql.NullString
		var personality, skill, decision, affinity []byte

		if err := rows.Scan(
			&rec.RecordID, &rec.CharacterID, &novelID, &personality, &skill, &decision, &affinity,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, engineerr.StorageError("scan predict character behavior row", err)
		}
		rec.NovelID = novelID.String
		rec.Personality, rec.Skill, rec.Decision, rec.Affinity = decodeEmbedding(personality), decodeEmbedding(skill), decodeEmbedding(decision), decodeEmbedding(affinity)

		aspectVec, err := selectCharacterAspect(&rec, aspect)
		if err != nil {
			return nil, err
		}
		if len(aspectVec) == 0 {
			continue
		}
		score := cosineSimilarity(situationVec, aspectVec)
		if score < threshold {
			continue
		}
		scored = append(scored, vectorstore.ScoredCharacter{
			Record: rec, Aspect: aspect, Score: score, Confidence: vectorstore.ConfidenceBucket(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate predict character behavior", err)
	}

	sortCharactersByScoreDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// BatchSimilarity runs SearchSimilarContent once per query, tagging each
// match with its query's position so callers can reassemble per-query
// result sets without losing the overall order.
func (b *Backend) BatchSimilarity(ctx context.Context, queries [][]float32, threshold float64, perQueryLimit int) ([]vectorstore.BatchSimilarityResult, error) {
	var results []vectorstore.BatchSimilarityResult
	for i, q := range queries {
		matches, err := b.SearchSimilarContent(ctx, q, vectorstore.SearchOptions{K: perQueryLimit, Threshold: threshold})
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			results = append(results, vectorstore.BatchSimilarityResult{
				QueryIndex: i, RecordID: m.Record.RecordID, Score: m.Score,
			})
		}
	}
	return results, nil
}

// LogSearch appends one row to vector_search_logs.
func (b *Backend) LogSearch(ctx context.Context, log *domain.SearchLog) error {
	if log.LogID == "" {
		log.LogID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO vector_search_logs
			(log_id, operation, query_hash, content_type, threshold, result_count,
			 latency_ms, model_used, cached, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`,
		log.LogID, log.Operation, log.QueryHash, log.ContentType, log.Threshold, log.ResultCount,
		log.LatencyMS, log.ModelUsed, log.Cached, log.CreatedAt,
	)
	if err != nil {
		return engineerr.StorageError("insert vector_search_logs", err)
	}
	return nil
}

// RebuildIndex is a no-op here: sqlitevec does no real vec0 indexing, it
// brute-forces every search, so there is no index to rebuild.
func (b *Backend) RebuildIndex(ctx context.Context, table string) error {
	switch table {
	case vectorstore.TableContentEmbeddings, vectorstore.TableLawChainEmbeddings, vectorstore.TableCharacterSemanticProfiles:
		return nil
	default:
		return engineerr.InvalidRequestError("unknown table: " + table)
	}
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// encodeEmbedding packs []float32 into raw IEEE-754 bytes, 4 per dimension.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	data := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosineSimilarity computes cosine similarity in IEEE-754 double precision
// since the pure-Go SQLite driver cannot load the vec0 extension and push
// this into the engine. Clamped to [0, 1]: a negative cosine (vectors more
// than 90 degrees apart) is not a valid similarity score.
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
	return clampScore(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// sortEmbeddingsByScoreDesc orders by descending score, ties broken by
// created_at descending then record_id ascending.
func sortEmbeddingsByScoreDesc(results []vectorstore.ScoredEmbedding) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.RecordID < b.Record.RecordID
	})
}

func sortLawChainsByScoreDesc(results []vectorstore.ScoredLawChain) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.RecordID < b.Record.RecordID
	})
}

func sortCharactersByScoreDesc(results []vectorstore.ScoredCharacter) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.RecordID < b.Record.RecordID
	})
}
