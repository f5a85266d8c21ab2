// Package vectorstore holds the embedded SQLite vector store used when no
// Postgres database is configured. Nearest-neighbour queries scan every
// stored vector, which is adequate for a single workshop's manuals.
package vectorstore

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tipo-sto/kbase/internal/domain"
)

// ErrMixedDocuments is returned when one Upsert carries records of more than
// one document.
var ErrMixedDocuments = errors.New("vectorstore: records belong to different documents")

const schema = `
CREATE TABLE IF NOT EXISTS kb_chunks (
	collection   TEXT    NOT NULL,
	id           TEXT    NOT NULL,
	document_id  TEXT    NOT NULL,
	filename     TEXT    NOT NULL,
	chunk_index  INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	pages        TEXT    NOT NULL DEFAULT '',
	added_at     INTEGER NOT NULL,
	content      TEXT    NOT NULL,
	embedding    BLOB    NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_kb_chunks_document ON kb_chunks (collection, document_id);
`

// SQLite stores chunks of one collection in a SQLite database.
type SQLite struct {
	db         *sql.DB
	collection string
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path, collection string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// In-memory databases are per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db, collection: collection}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Upsert replaces all chunks of the records' document in one transaction.
func (s *SQLite) Upsert(ctx context.Context, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	documentID := records[0].DocumentID
	for _, r := range records {
		if r.DocumentID != documentID {
			return ErrMixedDocuments
		}
		if err := domain.ValidateChunkRecord(r); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kb_chunks WHERE collection = ? AND document_id = ?`,
		s.collection, documentID,
	); err != nil {
		return fmt.Errorf("deleting previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kb_chunks
			(collection, id, document_id, filename, chunk_index, total_chunks, pages, added_at, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			s.collection, r.ID, r.DocumentID, r.Filename, r.ChunkIndex, r.TotalChunks,
			r.Pages, r.AddedAt, r.Text, encodeVector(r.Embedding),
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Query returns the n records closest to vector by cosine distance.
func (s *SQLite) Query(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, filename, chunk_index, total_chunks, pages, added_at, content, embedding
		 FROM kb_chunks WHERE collection = ?`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	top := &candidateHeap{}
	for rows.Next() {
		var r domain.ChunkRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Filename, &r.ChunkIndex, &r.TotalChunks,
			&r.Pages, &r.AddedAt, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.ID, err)
		}

		c := domain.Candidate{Record: r, Distance: CosineDistance(vector, emb)}
		if top.Len() < n {
			heap.Push(top, c)
		} else if c.Distance < (*top)[0].Distance {
			(*top)[0] = c
			heap.Fix(top, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, top.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(top).(domain.Candidate)
	}
	return out, nil
}

// Get returns records matching filter without their embeddings.
func (s *SQLite) Get(ctx context.Context, filter domain.ChunkFilter) ([]domain.ChunkRecord, error) {
	where := []string{"collection = ?"}
	args := []any{s.collection}
	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Filename != "" {
		where = append(where, "filename = ?")
		args = append(args, filter.Filename)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, filename, chunk_index, total_chunks, pages, added_at, content
		 FROM kb_chunks WHERE `+strings.Join(where, " AND ")+` ORDER BY document_id, chunk_index`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.ChunkRecord
	for rows.Next() {
		var r domain.ChunkRecord
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Filename, &r.ChunkIndex, &r.TotalChunks,
			&r.Pages, &r.AddedAt, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the given chunk ids in one transaction.
func (s *SQLite) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM kb_chunks WHERE collection = ? AND id = ?`, s.collection, id,
		); err != nil {
			return fmt.Errorf("deleting chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kb_chunks WHERE collection = ?`, s.collection,
	).Scan(&n)
	return n, err
}

// CosineDistance returns 1 - cos(a, b), in [0, 2]. Mismatched or zero
// vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - math.Max(-1, math.Min(1, cos))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes", len(data))
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats, nil
}

// candidateHeap is a max-heap on distance holding the best n so far.
type candidateHeap []domain.Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(domain.Candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
