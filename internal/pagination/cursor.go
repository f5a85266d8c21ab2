package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor represents a decoded pagination cursor
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates a base64-encoded cursor from the last item ID and timestamp
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a cursor produced by EncodeCursor. An empty cursor
// decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    parts[0],
		Timestamp: timestamp,
	}, nil
}

// Page cuts one page out of items, which must be ordered newest first and
// by ascending id within the same timestamp. Items at or before the cursor
// position are skipped.
func Page[T any](items []T, cursor *Cursor, limit int, getID func(T) string, getTimestamp func(T) time.Time) PageResult[T] {
	start := 0
	if cursor != nil {
		start = len(items)
		for i, item := range items {
			if after(getTimestamp(item), getID(item), cursor) {
				start = i
				break
			}
		}
	}

	end := min(start+limit, len(items))
	page := PageResult[T]{Items: items[start:end], HasMore: end < len(items)}
	if page.HasMore {
		last := items[end-1]
		page.Cursor = EncodeCursor(getID(last), getTimestamp(last))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

func after(ts time.Time, id string, c *Cursor) bool {
	if !ts.Equal(c.Timestamp) {
		return ts.Before(c.Timestamp)
	}
	return id > c.LastID
}
