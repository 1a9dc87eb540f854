// Package pgvector implements C2's Store over PostgreSQL with the pgvector
// extension: the production backend for content_embeddings,
// law_chain_embeddings, character_semantic_profiles, and vector_search_logs.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	"github.com/ninedomain/loreengine/pkg/domain"
)

// Backend implements vectorstore.Store against a PostgreSQL/pgvector database.
type Backend struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// Config configures a Backend.
type Config struct {
	// DSN is the PostgreSQL connection string. Ignored if DB is set.
	DSN string

	// DB lets callers reuse an existing connection pool; Backend will not
	// close it.
	DB *sql.DB

	// Dimension is the embedding width every vector column must match.
	Dimension int

	// RunMigrations applies embedded migrations on New. Default true.
	RunMigrations bool
}

// New opens (or adopts) a database connection and, unless disabled, brings
// the schema up to date before returning.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool
	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		ownsDB = true
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	default:
		return nil, errors.New("pgvector: either DSN or DB must be provided")
	}

	b := &Backend{db: db, dimension: cfg.Dimension, ownsDB: ownsDB}

	if cfg.RunMigrations {
		if err := runMigrations(ctx, db); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return b, nil
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
	if rec.RecordID == "" {
		rec.RecordID = uuid.New().String()
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
		INSERT INTO content_embeddings
			(record_id, content_id, content_type, content_hash, content_text,
			 content_metadata, embedding, model_name, embedding_version,
			 novel_id, chain_id, character_id, scene_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (content_hash, model_name, embedding_version) DO UPDATE SET
			content_text = EXCLUDED.content_text,
			content_metadata = EXCLUDED.content_metadata,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
		RETURNING record_id
	`,
		rec.RecordID, rec.ContentID, rec.ContentType, rec.ContentHash, rec.ContentText,
		string(metadata), encodeEmbedding(rec.Embedding), rec.ModelName, rec.EmbeddingVersion,
		nullString(rec.NovelID), nullString(rec.ChainID), nullString(rec.CharacterID), nullString(rec.SceneID),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert content_embeddings", err)
	}

	var recordID string
	if err := b.db.QueryRowContext(ctx, `
		SELECT record_id FROM content_embeddings
		WHERE content_hash = $1 AND model_name = $2 AND embedding_version = $3
	`, rec.ContentHash, rec.ModelName, rec.EmbeddingVersion).Scan(&recordID); err != nil {
		return "", engineerr.StorageError("read back content_embeddings", err)
	}
	return recordID, nil
}

// GetContentEmbedding reads one content_embeddings row by ID.
func (b *Backend) GetContentEmbedding(ctx context.Context, recordID string) (*domain.EmbeddingRecord, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT record_id, content_id, content_type, content_hash, content_text,
		       content_metadata, embedding, model_name, embedding_version,
		       novel_id, chain_id, character_id, scene_id, created_at, updated_at
		FROM content_embeddings WHERE record_id = $1
	`, recordID)

	var rec domain.EmbeddingRecord
	var metadataJSON sql.NullString
	var embeddingStr sql.NullString
	var novelID, chainID, characterID, sceneID sql.NullString

	if err := row.Scan(
		&rec.RecordID, &rec.ContentID, &rec.ContentType, &rec.ContentHash, &rec.ContentText,
		&metadataJSON, &embeddingStr, &rec.ModelName, &rec.EmbeddingVersion,
		&novelID, &chainID, &characterID, &sceneID, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engineerr.StorageError("content_embeddings not found", err)
		}
		return nil, engineerr.StorageError("scan content_embeddings", err)
	}

	rec.NovelID, rec.ChainID, rec.CharacterID, rec.SceneID = novelID.String, chainID.String, characterID.String, sceneID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.ContentMetadata); err != nil {
			return nil, engineerr.StorageError("unmarshal content_metadata", err)
		}
	}
	if embeddingStr.Valid {
		rec.Embedding = decodeEmbedding(embeddingStr.String)
	}
	return &rec, nil
}

// SearchSimilarContent ranks content_embeddings by cosine similarity.
func (b *Backend) SearchSimilarContent(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredEmbedding, error) {
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}
	queryVec := encodeEmbedding(query)

	sql := `
		SELECT record_id, content_id, content_type, content_hash, content_text,
		       content_metadata, embedding, model_name, embedding_version,
		       novel_id, chain_id, character_id, scene_id, created_at, updated_at,
		       1 - (embedding <=> $1::vector) as similarity
		FROM content_embeddings
		WHERE embedding IS NOT NULL
	`
	args := []any{queryVec}
	argNum := 2

	if opts.NovelID != "" {
		sql += fmt.Sprintf(" AND novel_id = $%d", argNum)
		args = append(args, opts.NovelID)
		argNum++
	}
	if len(opts.ContentTypes) > 0 {
		sql += fmt.Sprintf(" AND content_type = ANY($%d::text[])", argNum)
		args = append(args, pq.Array(opts.ContentTypes))
		argNum++
	}
	if opts.Threshold > 0 {
		sql += fmt.Sprintf(" AND (1 - (embedding <=> $1::vector)) >= $%d", argNum)
		args = append(args, opts.Threshold)
		argNum++
	}
	sql += " ORDER BY embedding <=> $1::vector ASC, created_at DESC, record_id ASC"
	sql += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, engineerr.StorageError("search content_embeddings", err)
	}
	defer rows.Close()

	var results []vectorstore.ScoredEmbedding
	for rows.Next() {
		var rec domain.EmbeddingRecord
		var metadataJSON sql.NullString
		var embeddingStr sql.NullString
		var novelID, chainID, characterID, sceneID sql.NullString
		var similarity float64

		if err := rows.Scan(
			&rec.RecordID, &rec.ContentID, &rec.ContentType, &rec.ContentHash, &rec.ContentText,
			&metadataJSON, &embeddingStr, &rec.ModelName, &rec.EmbeddingVersion,
			&novelID, &chainID, &characterID, &sceneID, &rec.CreatedAt, &rec.UpdatedAt,
			&similarity,
		); err != nil {
			return nil, engineerr.StorageError("scan content_embeddings search row", err)
		}
		rec.NovelID, rec.ChainID, rec.CharacterID, rec.SceneID = novelID.String, chainID.String, characterID.String, sceneID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &rec.ContentMetadata)
		}
		if embeddingStr.Valid {
			rec.Embedding = decodeEmbedding(embeddingStr.String)
		}
		results = append(results, vectorstore.ScoredEmbedding{Record: rec, Score: clampScore(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate content_embeddings search", err)
	}
	return results, nil
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

	if rec.RecordID == "" {
		rec.RecordID = uuid.New().String()
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
		INSERT INTO law_chain_embeddings
			(record_id, chain_id, novel_id, description, abilities, combination,
			 domain_preference, cost_risk, threshold_overrides, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (chain_id) DO UPDATE SET
			description = EXCLUDED.description,
			abilities = EXCLUDED.abilities,
			combination = EXCLUDED.combination,
			domain_preference = EXCLUDED.domain_preference,
			cost_risk = EXCLUDED.cost_risk,
			threshold_overrides = EXCLUDED.threshold_overrides,
			updated_at = EXCLUDED.updated_at
	`,
		rec.RecordID, rec.ChainID, nullString(rec.NovelID),
		encodeEmbedding(rec.Description), encodeEmbedding(rec.Abilities), encodeEmbedding(rec.Combination),
		encodeEmbedding(rec.DomainPreference), encodeEmbedding(rec.CostRisk),
		string(thresholds), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert law_chain_embeddings", err)
	}

	var recordID string
	if err := b.db.QueryRowContext(ctx, `SELECT record_id FROM law_chain_embeddings WHERE chain_id = $1`, rec.ChainID).Scan(&recordID); err != nil {
		return "", engineerr.StorageError("read back law_chain_embeddings", err)
	}
	return recordID, nil
}

// SearchLawChain ranks law chains by similarity on one aspect vector.
func (b *Backend) SearchLawChain(ctx context.Context, aspect domain.LawChainAspect, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredLawChain, error) {
	col, err := lawChainColumn(aspect)
	if err != nil {
		return nil, err
	}
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}
	queryVec := encodeEmbedding(query)

	sqlStr := fmt.Sprintf(`
		SELECT record_id, chain_id, novel_id, description, abilities, combination,
		       domain_preference, cost_risk, threshold_overrides, created_at, updated_at,
		       1 - (%s <=> $1::vector) as similarity
		FROM law_chain_embeddings
		WHERE %s IS NOT NULL
	`, col, col)
	args := []any{queryVec}
	argNum := 2
	if opts.NovelID != "" {
		sqlStr += fmt.Sprintf(" AND novel_id = $%d", argNum)
		args = append(args, opts.NovelID)
		argNum++
	}
	if opts.Threshold > 0 {
		sqlStr += fmt.Sprintf(" AND (1 - (%s <=> $1::vector)) >= $%d", col, argNum)
		args = append(args, opts.Threshold)
		argNum++
	}
	sqlStr += fmt.Sprintf(" ORDER BY %s <=> $1::vector ASC, created_at DESC, record_id ASC", col)
	sqlStr += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("search law_chain_embeddings", err)
	}
	defer rows.Close()

	var results []vectorstore.ScoredLawChain
	for rows.Next() {
		var rec domain.LawChainEmbedding
		var novelID sql.NullString
		var description, abilities, combination, domainPref, costRisk sql.NullString
		var thresholdsJSON sql.NullString
		var similarity float64

		if err := rows.Scan(
			&rec.RecordID, &rec.ChainID, &novelID, &description, &abilities, &combination,
			&domainPref, &costRisk, &thresholdsJSON, &rec.CreatedAt, &rec.UpdatedAt, &similarity,
		); err != nil {
			return nil, engineerr.StorageError("scan law_chain_embeddings search row", err)
		}
		rec.NovelID = novelID.String
		if description.Valid {
			rec.Description = decodeEmbedding(description.String)
		}
		if abilities.Valid {
			rec.Abilities = decodeEmbedding(abilities.String)
		}
		if combination.Valid {
			rec.Combination = decodeEmbedding(combination.String)
		}
		if domainPref.Valid {
			rec.DomainPreference = decodeEmbedding(domainPref.String)
		}
		if costRisk.Valid {
			rec.CostRisk = decodeEmbedding(costRisk.String)
		}
		if thresholdsJSON.Valid && thresholdsJSON.String != "" {
			_ = json.Unmarshal([]byte(thresholdsJSON.String), &rec.ThresholdOverrides)
		}
		results = append(results, vectorstore.ScoredLawChain{Record: rec, Aspect: aspect, Score: clampScore(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate law_chain_embeddings search", err)
	}
	return results, nil
}

func lawChainColumn(aspect domain.LawChainAspect) (string, error) {
	switch aspect {
	case domain.LawChainDescription:
		return "description", nil
	case domain.LawChainAbilities:
		return "abilities", nil
	case domain.LawChainCombination:
		return "combination", nil
	default:
		return "", engineerr.InvalidRequestError("unknown law chain aspect: " + string(aspect))
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

	if rec.RecordID == "" {
		rec.RecordID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO character_semantic_profiles
			(record_id, character_id, novel_id, personality, skill, decision, affinity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (character_id) DO UPDATE SET
			personality = EXCLUDED.personality,
			skill = EXCLUDED.skill,
			decision = EXCLUDED.decision,
			affinity = EXCLUDED.affinity,
			updated_at = EXCLUDED.updated_at
	`,
		rec.RecordID, rec.CharacterID, nullString(rec.NovelID),
		encodeEmbedding(rec.Personality), encodeEmbedding(rec.Skill), encodeEmbedding(rec.Decision), encodeEmbedding(rec.Affinity),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", engineerr.StorageError("insert character_semantic_profiles", err)
	}

	var recordID string
	if err := b.db.QueryRowContext(ctx, `SELECT record_id FROM character_semantic_profiles WHERE character_id = $1`, rec.CharacterID).Scan(&recordID); err != nil {
		return "", engineerr.StorageError("read back character_semantic_profiles", err)
	}
	return recordID, nil
}

// SearchCharacter ranks characters by similarity on one behavioral aspect.
func (b *Backend) SearchCharacter(ctx context.Context, aspect domain.CharacterAspect, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredCharacter, error) {
	col, err := characterColumn(aspect)
	if err != nil {
		return nil, err
	}
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}
	queryVec := encodeEmbedding(query)

	sqlStr := fmt.Sprintf(`
		SELECT record_id, character_id, novel_id, personality, skill, decision, affinity,
		       created_at, updated_at, 1 - (%s <=> $1::vector) as similarity
		FROM character_semantic_profiles
		WHERE %s IS NOT NULL
	`, col, col)
	args := []any{queryVec}
	argNum := 2
	if opts.NovelID != "" {
		sqlStr += fmt.Sprintf(" AND novel_id = $%d", argNum)
		args = append(args, opts.NovelID)
		argNum++
	}
	if opts.Threshold > 0 {
		sqlStr += fmt.Sprintf(" AND (1 - (%s <=> $1::vector)) >= $%d", col, argNum)
		args = append(args, opts.Threshold)
		argNum++
	}
	sqlStr += fmt.Sprintf(" ORDER BY %s <=> $1::vector ASC, created_at DESC, record_id ASC", col)
	sqlStr += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("search character_semantic_profiles", err)
	}
	defer rows.Close()

	var results []vectorstore.ScoredCharacter
	for rows.Next() {
		var rec domain.CharacterProfile
		var novelID sql.NullString
		var personality, skill, decision, affinity sql.NullString
		var similarity float64

		if err := rows.Scan(
			&rec.RecordID, &rec.CharacterID, &novelID, &personality, &skill, &decision, &affinity,
			&rec.CreatedAt, &rec.UpdatedAt, &similarity,
		); err != nil {
			return nil, engineerr.StorageError("scan character_semantic_profiles search row", err)
		}
		rec.NovelID = novelID.String
		if personality.Valid {
			rec.Personality = decodeEmbedding(personality.String)
		}
		if skill.Valid {
			rec.Skill = decodeEmbedding(skill.String)
		}
		if decision.Valid {
			rec.Decision = decodeEmbedding(decision.String)
		}
		if affinity.Valid {
			rec.Affinity = decodeEmbedding(affinity.String)
		}
		results = append(results, vectorstore.ScoredCharacter{Record: rec, Aspect: aspect, Score: clampScore(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate character_semantic_profiles search", err)
	}
	return results, nil
}

func characterColumn(aspect domain.CharacterAspect) (string, error) {
	switch aspect {
	case domain.CharacterPersonality:
		return "personality", nil
	case domain.CharacterSkill:
		return "skill", nil
	case domain.CharacterDecision:
		return "decision", nil
	default:
		return "", engineerr.InvalidRequestError("unknown character aspect: " + string(aspect))
	}
}

// PredictCharacterBehavior ranks characters other than targetCharID by
// similarity to situationVec on one behavioral aspect, bucketing each raw
// score into one of four discrete confidence levels.
func (b *Backend) PredictCharacterBehavior(ctx context.Context, targetCharID string, aspect domain.CharacterAspect, situationVec []float32, threshold float64, opts vectorstore.SearchOptions) ([]vectorstore.ScoredCharacter, error) {
	col, err := characterColumn(aspect)
	if err != nil {
		return nil, err
	}
	limit := opts.K
	if limit <= 0 {
		limit = 10
	}
	queryVec := encodeEmbedding(situationVec)

	sqlStr := fmt.Sprintf(`
		SELECT record_id, character_id, novel_id, personality, skill, decision, affinity,
		       created_at, updated_at, 1 - (%s <=> $1::vector) as similarity
		FROM character_semantic_profiles
		WHERE %s IS NOT NULL AND character_id != $2
	`, col, col)
	args := []any{queryVec, targetCharID}
	argNum := 3
	if opts.NovelID != "" {
		sqlStr += fmt.Sprintf(" AND novel_id = $%d", argNum)
		args = append(args, opts.NovelID)
		argNum++
	}
	sqlStr += fmt.Sprintf(" AND (1 - (%s <=> $1::vector)) >= $%d", col, argNum)
	args = append(args, threshold)
	argNum++
	sqlStr += fmt.Sprintf(" ORDER BY %s <=> $1::vector ASC, created_at DESC, record_id ASC", col)
	sqlStr += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, engineerr.StorageError("predict character behavior", err)
	}
	defer rows.Close()

	var results []vectorstore.ScoredCharacter
	for rows.Next() {
		var rec domain.CharacterProfile
		var novelID sql.NullString
		var personality, skill, decision, affinity sql.NullString
		var similarity float64

		if err := rows.Scan(
			&rec.RecordID, &rec.CharacterID, &novelID, &personality, &skill, &decision, &affinity,
			&rec.CreatedAt, &rec.UpdatedAt, &similarity,
		); err != nil {
			return nil, engineerr.StorageError("scan predict character behavior row", err)
		}
		rec.NovelID = novelID.String
		if personality.Valid {
			rec.Personality = decodeEmbedding(personality.String)
		}
		if skill.Valid {
			rec.Skill = decodeEmbedding(skill.String)
		}
		if decision.Valid {
			rec.Decision = decodeEmbedding(decision.String)
		}
		if affinity.Valid {
			rec.Affinity = decodeEmbedding(affinity.String)
		}
		score := clampScore(similarity)
		results = append(results, vectorstore.ScoredCharacter{
			Record: rec, Aspect: aspect, Score: score, Confidence: vectorstore.ConfidenceBucket(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate predict character behavior", err)
	}
	return results, nil
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

// LogSearch appends one row to the append-only vector_search_logs table.
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		log.LogID, log.Operation, nullString(log.QueryHash), nullString(log.ContentType),
		log.Threshold, log.ResultCount, log.LatencyMS, nullString(log.ModelUsed), log.Cached, log.CreatedAt,
	)
	if err != nil {
		return engineerr.StorageError("insert vector_search_logs", err)
	}
	return nil
}

// RebuildIndex reindexes the ivfflat index for the named table. Other
// tables' indices remain online; REINDEX CONCURRENTLY would be preferable
// in production but requires a connection outside any transaction, which
// database/sql does not guarantee here.
func (b *Backend) RebuildIndex(ctx context.Context, table string) error {
	idx, err := indexNameFor(table)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, "REINDEX INDEX "+idx); err != nil {
		return engineerr.StorageError("rebuild index "+idx, err)
	}
	return nil
}

func indexNameFor(table string) (string, error) {
	switch table {
	case vectorstore.TableContentEmbeddings:
		return "idx_content_embeddings_vec", nil
	case vectorstore.TableLawChainEmbeddings:
		return "idx_law_chain_description_vec", nil
	case vectorstore.TableCharacterSemanticProfiles:
		return "idx_character_personality_vec", nil
	default:
		return "", engineerr.InvalidRequestError("unknown table: " + table)
	}
}

// Close releases the connection if this Backend opened it.
func (b *Backend) Close() error {
	if b.ownsDB && b.db != nil {
		return b.db.Close()
	}
	return nil
}

// DB exposes the underlying connection pool so callers sharing this
// database (e.g. C3's pgvector persistence backend) can reuse it.
func (b *Backend) DB() *sql.DB {
	return b.db
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

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// encodeEmbedding converts []float32 to pgvector's string literal format.
func encodeEmbedding(v []float32) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sql.NullString{String: sb.String(), Valid: true}
}

func decodeEmbedding(s string) []float32 {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	v := make([]float32, len(parts))
	for i, p := range parts {
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%f", &f); err != nil {
			return nil
		}
		v[i] = float32(f)
	}
	return v
}
