package audit

import (
	"context"
	"testing"
	"time"
)

func TestPrunerPruneByAge(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	defer storage.Close()

	now := time.Now().UTC()
	for _, rec := range []*Record{
		testRecord("doc-old", "redacted", now.Add(-60*24*time.Hour)),
		testRecord("doc-mid", "redacted", now.Add(-10*24*time.Hour)),
		testRecord("doc-new", "redacted", now),
	} {
		if err := storage.Store(ctx, rec); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}

	pruner := NewPruner(storage, &PrunerConfig{MaxAge: 30 * 24 * time.Hour}, nil, nil)

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d, want 1", deleted)
	}

	count, err := storage.Count(ctx, &Query{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestPrunerDisabledMaxAge(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	defer storage.Close()

	if err := storage.Store(ctx, testRecord("doc-old", "redacted", time.Now().Add(-365*24*time.Hour))); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	pruner := NewPruner(storage, &PrunerConfig{MaxAge: 0}, nil, nil)

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() with MaxAge=0 deleted %d, want 0", deleted)
	}
}

func TestPrunerScheduler(t *testing.T) {
	storage := NewMemoryStorage()
	defer storage.Close()

	pruner := NewPruner(storage, &PrunerConfig{
		MaxAge:   time.Hour,
		Schedule: "0 3 * * *",
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !pruner.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if pruner.NextPruning() == nil {
		t.Error("NextPruning() = nil, want scheduled time")
	}

	cancel()

	deadline := time.After(2 * time.Second)
	for pruner.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler did not stop after context cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPrunerInvalidSchedule(t *testing.T) {
	pruner := NewPruner(NewMemoryStorage(), &PrunerConfig{
		MaxAge:   time.Hour,
		Schedule: "not a cron expression",
	}, nil, nil)

	if err := pruner.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid schedule should fail")
	}
}

func TestPrunerEmptySchedule(t *testing.T) {
	pruner := NewPruner(NewMemoryStorage(), &PrunerConfig{MaxAge: time.Hour}, nil, nil)

	if err := pruner.Start(context.Background()); err != nil {
		t.Fatalf("Start() with empty schedule error = %v", err)
	}
	if pruner.IsRunning() {
		t.Error("IsRunning() = true with empty schedule")
	}
}
