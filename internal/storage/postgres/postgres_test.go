package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if HAGGLE_TEST_PG_DSN is set
	dsn := os.Getenv("HAGGLE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: HAGGLE_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	// Postgres keeps microseconds.
	now := time.Now().UTC().Truncate(time.Microsecond)
	// Unique title so reruns against the same database stay independent.
	title := "pg iPhone 13 " + uuid.NewString()
	price := 99999.5

	res := &storage.SearchRecord{
		ID:         uuid.NewString(),
		Title:      title,
		Count:      1,
		Statistics: listing.Statistics{Min: price, Max: price, Average: price, Count: 1},
		Results: []listing.Priced{{
			Scored:     listing.Scored{Listing: listing.Listing{Source: "OLX", Title: title, Price: "Rs 99,999.50"}, MatchScore: 0.75},
			CleanPrice: &price,
		}},
		Sources:   []listing.SourceStatus{{Source: "OLX", Count: 1}, {Source: "Daraz", Failure: "status: unexpected status 503"}},
		CreatedAt: now,
	}

	if err := b.Save(ctx, res); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	older := *res
	older.ID = uuid.NewString()
	older.CreatedAt = now.Add(-time.Hour)
	if err := b.Save(ctx, &older); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Title: title})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(results))
	}

	got := results[0]
	if got.ID != res.ID {
		t.Errorf("Expected newest record %s first, got %s", res.ID, got.ID)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("Expected CreatedAt %v, got %v", now, got.CreatedAt)
	}
	if got.Statistics != res.Statistics {
		t.Errorf("Expected statistics %+v, got %+v", res.Statistics, got.Statistics)
	}
	if len(got.Sources) != 2 || got.Sources[1].Failure == "" {
		t.Errorf("Unexpected sources %+v", got.Sources)
	}
	if len(got.Results) != 1 || got.Results[0].CleanPrice == nil || *got.Results[0].CleanPrice != price {
		t.Errorf("Unexpected results %+v", got.Results)
	}

	page, err := b.Query(ctx, storage.Filter{Title: title, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query page: %v", err)
	}
	if len(page) != 1 || page[0].ID != older.ID {
		t.Errorf("Expected older record on second page, got %+v", page)
	}
}
