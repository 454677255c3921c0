package audit

import (
	"context"
	"log/slog"

	"umbra-hq/umbra/pkg/telemetry/metrics"
)

// Sink writes pipeline pass records to a storage backend and counts
// write outcomes. It is what the pipeline holds; storage backends stay
// behind it.
type Sink struct {
	storage   Storage
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewSink creates a sink over the given storage. The collector is
// optional.
func NewSink(storage Storage, collector *metrics.Collector, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		storage:   storage,
		collector: collector,
		logger:    logger.With("component", "audit.sink"),
	}
}

// Record persists one audit record.
func (s *Sink) Record(ctx context.Context, rec *Record) error {
	err := s.storage.Store(ctx, rec)
	if s.collector != nil {
		s.collector.RecordAuditWrite(s.storage.Backend(), err != nil)
	}
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "audit record stored",
		"record_id", rec.ID,
		"document_id", rec.DocumentID,
		"outcome", rec.Outcome,
	)
	return nil
}

// Storage exposes the underlying backend for queries and pruning.
func (s *Sink) Storage() Storage {
	return s.storage
}
