// Package source defines the contract for the external, paginated content
// store the agent polls, plus helpers shared by its implementations.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/sitesmith/internal/models"
)

// DefaultPageSize is used when a Query leaves PageSize unset.
const DefaultPageSize = 100

// Query filters and paginates a collection listing.
type Query struct {
	// EditedAtOrAfter, when non-zero, restricts results to records whose
	// last edit is at or after this instant.
	EditedAtOrAfter time.Time
	PageToken       string
	PageSize        int
}

// RecordPage is one page of query results. An empty NextPageToken means the
// listing is complete.
type RecordPage struct {
	Records       []models.Record
	NextPageToken string
}

// Source is an external content store.
type Source interface {
	QueryRecords(ctx context.Context, collectionID string, q Query) (RecordPage, error)
	WriteStatus(ctx context.Context, recordID string, fields Fields) error
	CreateRecord(ctx context.Context, collectionID string, fields Fields) (string, error)
}

// Fields is a set of typed property values to write to a record. Values
// must be one of Select, Text, URL, Number or Date.
type Fields map[string]any

type (
	Select string
	Text   string
	URL    string
	Number float64
	Date   time.Time
)

// QueryAll follows pagination to completion and returns every matching record.
func QueryAll(ctx context.Context, src Source, collectionID string, q Query) ([]models.Record, error) {
	var out []models.Record
	q.PageToken = ""
	for {
		page, err := src.QueryRecords(ctx, collectionID, q)
		if err != nil {
			return out, fmt.Errorf("source: query %s: %w", collectionID, err)
		}
		out = append(out, page.Records...)
		if page.NextPageToken == "" {
			return out, nil
		}
		if page.NextPageToken == q.PageToken {
			return out, fmt.Errorf("source: query %s: page token did not advance", collectionID)
		}
		q.PageToken = page.NextPageToken
	}
}
