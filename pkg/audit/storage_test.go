package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testRecord(documentID, outcome string, ts time.Time) *Record {
	return &Record{
		ID:            uuid.New(),
		Timestamp:     ts,
		DocumentID:    documentID,
		Outcome:       outcome,
		SpanCount:     3,
		RedactedCount: 2,
		Duration:      12 * time.Millisecond,
	}
}

// openStorages returns both backends so behavioral tests run against each.
func openStorages(t *testing.T) map[string]Storage {
	t.Helper()

	sqlite, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	memory := NewMemoryStorage()
	t.Cleanup(func() { memory.Close() })

	return map[string]Storage{
		"memory": memory,
		"sqlite": sqlite,
	}
}

func TestStorageStoreAndQuery(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for name, storage := range openStorages(t) {
		t.Run(name, func(t *testing.T) {
			recs := []*Record{
				testRecord("doc-1", "redacted", now.Add(-2*time.Hour)),
				testRecord("doc-2", "redacted", now.Add(-time.Hour)),
				testRecord("doc-2", "error", now),
			}
			for _, rec := range recs {
				if err := storage.Store(ctx, rec); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			all, err := storage.Query(ctx, &Query{})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("Query() returned %d records, want 3", len(all))
			}
			// Newest first.
			if all[0].DocumentID != "doc-2" || all[0].Outcome != "error" {
				t.Errorf("Query()[0] = %s/%s, want doc-2/error", all[0].DocumentID, all[0].Outcome)
			}

			byDoc, err := storage.Query(ctx, &Query{DocumentID: "doc-2"})
			if err != nil {
				t.Fatalf("Query(DocumentID) error = %v", err)
			}
			if len(byDoc) != 2 {
				t.Errorf("Query(doc-2) returned %d records, want 2", len(byDoc))
			}

			byOutcome, err := storage.Query(ctx, &Query{Outcome: "error"})
			if err != nil {
				t.Fatalf("Query(Outcome) error = %v", err)
			}
			if len(byOutcome) != 1 {
				t.Errorf("Query(error) returned %d records, want 1", len(byOutcome))
			}

			since := now.Add(-90 * time.Minute)
			recent, err := storage.Query(ctx, &Query{Since: &since})
			if err != nil {
				t.Fatalf("Query(Since) error = %v", err)
			}
			if len(recent) != 2 {
				t.Errorf("Query(Since) returned %d records, want 2", len(recent))
			}

			count, err := storage.Count(ctx, &Query{DocumentID: "doc-2"})
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != 2 {
				t.Errorf("Count(doc-2) = %d, want 2", count)
			}
		})
	}
}

func TestStorageQueryPagination(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, storage := range openStorages(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				rec := testRecord("doc-1", "redacted", now.Add(time.Duration(i)*time.Minute))
				if err := storage.Store(ctx, rec); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			page, err := storage.Query(ctx, &Query{Limit: 2, Offset: 1})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(page) != 2 {
				t.Fatalf("Query(Limit=2, Offset=1) returned %d records, want 2", len(page))
			}

			past, err := storage.Query(ctx, &Query{Offset: 10})
			if err != nil {
				t.Fatalf("Query(Offset=10) error = %v", err)
			}
			if len(past) != 0 {
				t.Errorf("Query past end returned %d records, want 0", len(past))
			}
		})
	}
}

func TestStoragePrune(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, storage := range openStorages(t) {
		t.Run(name, func(t *testing.T) {
			old := testRecord("doc-old", "redacted", now.Add(-48*time.Hour))
			fresh := testRecord("doc-fresh", "redacted", now)
			for _, rec := range []*Record{old, fresh} {
				if err := storage.Store(ctx, rec); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			deleted, err := storage.Prune(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != 1 {
				t.Errorf("Prune() deleted %d, want 1", deleted)
			}

			remaining, err := storage.Query(ctx, &Query{})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(remaining) != 1 || remaining[0].DocumentID != "doc-fresh" {
				t.Errorf("after prune got %d records, want only doc-fresh", len(remaining))
			}
		})
	}
}

func TestStorageRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()

	for name, storage := range openStorages(t) {
		t.Run(name, func(t *testing.T) {
			err := storage.Store(ctx, &Record{Timestamp: time.Now(), DocumentID: "doc-1"})
			if err == nil {
				t.Fatal("Store() with nil ID should fail")
			}
			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Errorf("Store() error type = %T, want *StorageError", err)
			}
		})
	}
}

func TestMemoryStorageClosed(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	if err := storage.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := storage.Store(ctx, testRecord("doc-1", "redacted", time.Now())); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Store() after Close error = %v, want ErrStorageClosed", err)
	}
	if _, err := storage.Query(ctx, &Query{}); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Query() after Close error = %v, want ErrStorageClosed", err)
	}
}

func TestSQLiteStorageRoundTripFields(t *testing.T) {
	ctx := context.Background()
	storage, err := NewSQLiteStorage(&SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer storage.Close()

	want := &Record{
		ID:             uuid.New(),
		Timestamp:      time.Now().UTC().Truncate(time.Microsecond),
		DocumentID:     "doc-42",
		Outcome:        "short_circuited",
		SpanCount:      7,
		RedactedCount:  0,
		ShortCircuited: true,
		Duration:       1500 * time.Microsecond,
	}
	if err := storage.Store(ctx, want); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := storage.Query(ctx, &Query{DocumentID: "doc-42"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d records, want 1", len(got))
	}

	rec := got[0]
	if rec.ID != want.ID {
		t.Errorf("ID = %s, want %s", rec.ID, want.ID)
	}
	if !rec.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want.Timestamp)
	}
	if !rec.ShortCircuited {
		t.Error("ShortCircuited = false, want true")
	}
	if rec.SpanCount != 7 || rec.RedactedCount != 0 {
		t.Errorf("counts = %d/%d, want 7/0", rec.SpanCount, rec.RedactedCount)
	}
	if rec.Duration != want.Duration {
		t.Errorf("Duration = %v, want %v", rec.Duration, want.Duration)
	}
}
