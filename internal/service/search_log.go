package service

import (
	"context"
	"time"
)

// SearchLogEntry records one executed search.
type SearchLogEntry struct {
	Collection  string
	Query       string
	Expanded    bool
	BrandScoped bool
	HitCount    int
	// TopScore is nil when the search returned nothing.
	TopScore *float64
	Latency  time.Duration
}

// SearchLogger persists search log entries for relevance review.
type SearchLogger interface {
	Log(ctx context.Context, entry SearchLogEntry) error
}
