// Package csvbackend stores search history as a CSV file, one row per
// search, with nested values held as JSON cells.
package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/haggle/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"title",
	"result_count",
	"statistics_json",
	"results_json",
	"sources_json",
	"created_at",
}

// New opens filePath for appending, creating it with a header row if needed.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, record *storage.SearchRecord) error {
	stats, err := json.Marshal(record.Statistics)
	if err != nil {
		return fmt.Errorf("csvbackend: encode statistics: %w", err)
	}
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("csvbackend: encode results: %w", err)
	}
	sources, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("csvbackend: encode sources: %w", err)
	}

	row := []string{
		record.ID,
		record.Title,
		strconv.Itoa(record.Count),
		string(stats),
		string(results),
		string(sources),
		record.CreatedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.SearchRecord{}, nil
		}
		return nil, fmt.Errorf("csvbackend: header: %w", err)
	}

	var matched []*storage.SearchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}

		rec, ok := parseRow(row)
		if !ok {
			continue // skip malformed rows
		}
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}

	// Later writes come first on equal timestamps.
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b *storage.SearchRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if matched == nil {
		matched = []*storage.SearchRecord{}
	}
	return filter.Page(matched), nil
}

func parseRow(row []string) (*storage.SearchRecord, bool) {
	if len(row) != len(headers) {
		return nil, false
	}

	count, err := strconv.Atoi(row[2])
	if err != nil {
		return nil, false
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row[6])
	if err != nil {
		return nil, false
	}

	rec := &storage.SearchRecord{
		ID:        row[0],
		Title:     row[1],
		Count:     count,
		CreatedAt: createdAt,
	}
	if json.Unmarshal([]byte(row[3]), &rec.Statistics) != nil ||
		json.Unmarshal([]byte(row[4]), &rec.Results) != nil ||
		json.Unmarshal([]byte(row[5]), &rec.Sources) != nil {
		return nil, false
	}
	return rec, true
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
