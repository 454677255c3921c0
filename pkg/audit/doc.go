// Package audit records the outcome of every pipeline pass for compliance
// review. Records carry counts, outcomes, and timings only; document text
// and span text never enter the store.
//
// # Architecture
//
// The audit system has three parts:
//
//  1. Sink - Receives one record per pipeline pass and writes it through
//  2. Storage Backend - Persists records (in-memory or SQLite)
//  3. Pruner - Enforces the retention policy on a cron schedule
//
// # Basic Usage
//
//	storage, err := audit.NewSQLiteStorage(&audit.SQLiteConfig{
//	    Path:    "umbra-audit.db",
//	    WALMode: true,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer storage.Close()
//
//	sink := audit.NewSink(storage, collector, logger)
//
//	// The pipeline calls sink.Record for every completed pass.
//
// # Retention
//
//	pruner := audit.NewPruner(storage, &audit.PrunerConfig{
//	    MaxAge:   720 * time.Hour,
//	    Schedule: "0 3 * * *", // daily at 03:00
//	}, collector, logger)
//
//	pruner.Start(ctx)
//	defer pruner.Stop()
//
// # Storage Backends
//
// Custom backends can be implemented by satisfying the Storage interface.
// The SQLite backend uses WAL mode and a prepared insert statement; the
// memory backend is for tests and ephemeral deployments.
package audit
