package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tipo-sto/kbase/internal/service"
)

// SearchLogRepository stores executed searches for relevance review.
type SearchLogRepository struct {
	db dbtx
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{db: pool}
}

func (r *SearchLogRepository) Log(ctx context.Context, entry service.SearchLogEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO kb_search_log (id, collection, query, expanded, brand_scoped, hit_count, top_score, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(),
		entry.Collection,
		entry.Query,
		entry.Expanded,
		entry.BrandScoped,
		entry.HitCount,
		entry.TopScore,
		entry.Latency.Milliseconds(),
	)
	return err
}

// SearchLogRow is a stored search log entry.
type SearchLogRow struct {
	ID        string
	Query     string
	Expanded  bool
	HitCount  int
	TopScore  *float64
	LatencyMs int64
}

// Recent returns the newest entries of a collection.
func (r *SearchLogRepository) Recent(ctx context.Context, collection string, limit int) ([]SearchLogRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, query, expanded, hit_count, top_score, latency_ms
		 FROM kb_search_log
		 WHERE collection = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchLogRow
	for rows.Next() {
		var row SearchLogRow
		if err := rows.Scan(&row.ID, &row.Query, &row.Expanded, &row.HitCount, &row.TopScore, &row.LatencyMs); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
