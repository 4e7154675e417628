// Package storage persists the history of price comparisons.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/google/uuid"
)

// SearchRecord is one completed comparison as kept in history.
type SearchRecord struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	Count      int                    `json:"count"` // number of ranked results
	Statistics listing.Statistics     `json:"statistics"`
	Results    []listing.Priced       `json:"results"`
	Sources    []listing.SourceStatus `json:"sources"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewRecord captures result as a SearchRecord stamped with a fresh ID.
func NewRecord(result *listing.SearchResult, at time.Time) *SearchRecord {
	return &SearchRecord{
		ID:         uuid.New().String(),
		Title:      result.Query,
		Count:      len(result.Results),
		Statistics: result.Insights,
		Results:    result.Results,
		Sources:    result.Sources,
		CreatedAt:  at.UTC(),
	}
}

// Filter narrows a history query. Title matches case-insensitively as a
// substring.
type Filter struct {
	Title  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Matches reports whether r passes the Title and Since conditions of f.
// File backends filter with it in memory.
func (f Filter) Matches(r *SearchRecord) bool {
	if f.Title != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to records already ordered newest first.
func (f Filter) Page(records []*SearchRecord) []*SearchRecord {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*SearchRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend stores and queries search history. Query returns newest first.
type Backend interface {
	Save(ctx context.Context, record *SearchRecord) error
	Query(ctx context.Context, filter Filter) ([]*SearchRecord, error)
	Close() error
}
