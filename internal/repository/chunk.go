package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tipo-sto/kbase/internal/domain"
)

// ErrMixedDocuments is returned when one Upsert carries records of more than
// one document.
var ErrMixedDocuments = errors.New("repository: records belong to different documents")

// ChunkRepository stores chunk records of one collection in Postgres with
// pgvector embeddings.
type ChunkRepository struct {
	db         dbtx
	tx         *TxRunner
	collection string
}

func NewChunkRepository(pool *pgxpool.Pool, collection string) *ChunkRepository {
	return &ChunkRepository{db: pool, tx: NewTxRunner(pool), collection: collection}
}

// Upsert replaces all chunks of the records' document in one transaction.
func (r *ChunkRepository) Upsert(ctx context.Context, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	documentID := records[0].DocumentID
	for _, rec := range records {
		if rec.DocumentID != documentID {
			return ErrMixedDocuments
		}
		if err := domain.ValidateChunkRecord(rec); err != nil {
			return err
		}
	}

	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM kb_chunks WHERE collection = $1 AND document_id = $2`,
			r.collection, documentID,
		); err != nil {
			return fmt.Errorf("delete previous chunks: %w", err)
		}

		for _, rec := range records {
			if _, err := tx.Exec(ctx,
				`INSERT INTO kb_chunks
					(collection, id, document_id, filename, chunk_index, total_chunks, pages, added_at, content, embedding)
				 VALUES
					($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				r.collection,
				rec.ID,
				rec.DocumentID,
				rec.Filename,
				rec.ChunkIndex,
				rec.TotalChunks,
				rec.Pages,
				rec.AddedAt,
				rec.Text,
				pgvector.NewVector(rec.Embedding),
			); err != nil {
				return fmt.Errorf("insert chunk %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Query returns the n records nearest to vector by cosine distance. The scan
// is exact, so fewer than n rows means the collection holds fewer than n.
func (r *ChunkRepository) Query(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, filename, chunk_index, total_chunks, pages, added_at, content,
		        embedding <=> $2 AS distance
		 FROM kb_chunks
		 WHERE collection = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		r.collection, pgvector.NewVector(vector), n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.Record.ID, &c.Record.DocumentID, &c.Record.Filename, &c.Record.ChunkIndex,
			&c.Record.TotalChunks, &c.Record.Pages, &c.Record.AddedAt, &c.Record.Text, &c.Distance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns records matching filter without their embeddings.
func (r *ChunkRepository) Get(ctx context.Context, filter domain.ChunkFilter) ([]domain.ChunkRecord, error) {
	where := []string{"collection = $1"}
	args := []any{r.collection}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.Filename != "" {
		args = append(args, filter.Filename)
		where = append(where, fmt.Sprintf("filename = $%d", len(args)))
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, filename, chunk_index, total_chunks, pages, added_at, content
		 FROM kb_chunks
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY document_id, chunk_index`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChunkRecord
	for rows.Next() {
		var rec domain.ChunkRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Filename, &rec.ChunkIndex,
			&rec.TotalChunks, &rec.Pages, &rec.AddedAt, &rec.Text); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the given chunk ids in a single statement.
func (r *ChunkRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM kb_chunks WHERE collection = $1 AND id = ANY($2)`,
		r.collection, ids,
	)
	return err
}

func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM kb_chunks WHERE collection = $1`, r.collection,
	).Scan(&n)
	return n, err
}
