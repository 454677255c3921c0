package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one audit entry describing a completed pipeline pass. It
// carries counts and timing only; document text never enters the store.
type Record struct {
	// ID uniquely identifies this record.
	ID uuid.UUID `json:"id"`

	// Timestamp is when the pass completed, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// DocumentID is the processed document's identifier.
	DocumentID string `json:"documentId"`

	// Outcome is the pass outcome: "redacted", "short_circuited", or "error".
	Outcome string `json:"outcome"`

	// SpanCount is the number of spans detected before disambiguation.
	SpanCount int `json:"spanCount"`

	// RedactedCount is the number of spans actually replaced.
	RedactedCount int `json:"redactedCount"`

	// ShortCircuited reports whether a plugin decided the document early.
	ShortCircuited bool `json:"shortCircuited"`

	// Duration is the total pass duration.
	Duration time.Duration `json:"duration"`
}

// Validate checks that a record has the fields storage requires.
func (r *Record) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("record ID is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("record timestamp is required")
	}
	if r.DocumentID == "" {
		return fmt.Errorf("record document ID is required")
	}
	return nil
}

// Query filters audit records. Zero-valued fields match everything.
type Query struct {
	// DocumentID filters by document identifier.
	DocumentID string

	// Outcome filters by pass outcome.
	Outcome string

	// Since includes only records at or after this time.
	Since *time.Time

	// Until includes only records before this time.
	Until *time.Time

	// Limit caps the number of returned records. 0 means the backend default.
	Limit int

	// Offset skips this many records for pagination.
	Offset int
}

// Storage is the persistence interface for audit records. Backends return
// records sorted newest first.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Prune deletes records with a timestamp before cutoff and returns
	// how many were deleted.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Backend names the backend for logs and metrics labels.
	Backend() string

	// Close releases backend resources.
	Close() error
}
