// Package pgvector implements semanticcache.Persistence over the same
// PostgreSQL/pgvector database internal/vectorstore/pgvector uses, so C3's
// semantic_cache table lives alongside C2's tables in one schema.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/pkg/domain"
)

var _ semanticcache.Persistence = (*Backend)(nil)

// Backend persists semantic_cache rows. It does not own migrations: the
// table is created by internal/vectorstore/pgvector's embedded migrations,
// since both packages share one database.
type Backend struct {
	db *sql.DB
}

// New wraps an existing, already-migrated database connection.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// Upsert writes one cache entry, keyed by query_hash.
func (b *Backend) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	response, err := json.Marshal(entry.ResponseData)
	if err != nil {
		return engineerr.StorageError("marshal response_data", err)
	}
	metadata, err := json.Marshal(entry.ResponseMetadata)
	if err != nil {
		return engineerr.StorageError("marshal response_metadata", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO semantic_cache
			(entry_id, query_text, query_hash, query_embedding, response_data,
			 response_metadata, similarity_threshold, hit_count, last_hit_at,
			 expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (query_hash) DO UPDATE SET
			response_data = EXCLUDED.response_data,
			response_metadata = EXCLUDED.response_metadata,
			similarity_threshold = EXCLUDED.similarity_threshold,
			hit_count = EXCLUDED.hit_count,
			last_hit_at = EXCLUDED.last_hit_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`,
		entry.EntryID, entry.QueryText, entry.QueryHash, encodeEmbedding(entry.QueryEmbedding),
		string(response), string(metadata), entry.SimilarityThreshold, entry.HitCount,
		nullTime(entry.LastHitAt), entry.ExpiresAt, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return engineerr.StorageError("upsert semantic_cache", err)
	}
	return nil
}

// DeleteExpired removes up to batchSize rows whose expires_at has passed.
func (b *Backend) DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	res, err := b.db.ExecContext(ctx, `
		DELETE FROM semantic_cache WHERE entry_id IN (
			SELECT entry_id FROM semantic_cache WHERE expires_at <= $1 LIMIT $2
		)
	`, before, batchSize)
	if err != nil {
		return 0, engineerr.StorageError("delete expired semantic_cache rows", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, engineerr.StorageError("rows affected semantic_cache delete", err)
	}
	return int(n), nil
}

// LoadLive reads every row that has not yet expired, for cache warm-start.
func (b *Backend) LoadLive(ctx context.Context, now time.Time) ([]*domain.CacheEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT entry_id, query_text, query_hash, query_embedding, response_data,
		       response_metadata, similarity_threshold, hit_count, last_hit_at,
		       expires_at, created_at, updated_at
		FROM semantic_cache WHERE expires_at > $1
	`, now)
	if err != nil {
		return nil, engineerr.StorageError("load live semantic_cache rows", err)
	}
	defer rows.Close()

	var entries []*domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		var embeddingStr sql.NullString
		var responseJSON, metadataJSON sql.NullString
		var lastHit sql.NullTime

		if err := rows.Scan(
			&e.EntryID, &e.QueryText, &e.QueryHash, &embeddingStr, &responseJSON,
			&metadataJSON, &e.SimilarityThreshold, &e.HitCount, &lastHit,
			&e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, engineerr.StorageError("scan semantic_cache row", err)
		}
		if embeddingStr.Valid {
			e.QueryEmbedding = decodeEmbedding(embeddingStr.String)
		}
		if responseJSON.Valid && responseJSON.String != "" {
			_ = json.Unmarshal([]byte(responseJSON.String), &e.ResponseData)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &e.ResponseMetadata)
		}
		if lastHit.Valid {
			t := lastHit.Time
			e.LastHitAt = &t
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.StorageError("iterate semantic_cache rows", err)
	}
	return entries, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

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
