package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// ChunkRepository persists index entries. Entries are immutable, so Save only inserts new ids.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Load(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, filename, chunk_id, content_hash, upload_timestamp, chunk_length, vector
FROM knowledge_chunks
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IndexEntry, 0, 64)
	for rows.Next() {
		var (
			e         domain.IndexEntry
			vectorRaw []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.Text,
			&e.Metadata.Filename,
			&e.Metadata.ChunkIndex,
			&e.Metadata.Fingerprint,
			&e.Metadata.IngestedAt,
			&e.Metadata.ChunkLength,
			&vectorRaw,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(vectorRaw) > 0 {
			if err := json.Unmarshal(vectorRaw, &e.Vector); err != nil {
				return nil, fmt.Errorf("decode chunk vector %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) Save(ctx context.Context, entries []domain.IndexEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range entries {
		var vectorRaw []byte
		if len(e.Vector) > 0 {
			vectorRaw, err = json.Marshal(e.Vector)
			if err != nil {
				return fmt.Errorf("encode chunk vector %s: %w", e.ID, err)
			}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO knowledge_chunks (id, text, filename, chunk_id, content_hash, upload_timestamp, chunk_length, vector)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`, e.ID, e.Text, e.Metadata.Filename, e.Metadata.ChunkIndex, e.Metadata.Fingerprint, e.Metadata.IngestedAt, e.Metadata.ChunkLength, vectorRaw)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save chunks tx: %w", err)
	}
	return nil
}
