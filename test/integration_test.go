//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/disambiguation"
	"umbra-hq/umbra/pkg/pipeline"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/server"
	"umbra-hq/umbra/pkg/stream"
	"umbra-hq/umbra/pkg/telemetry/health"
	"umbra-hq/umbra/pkg/telemetry/metrics"
)

func buildStack(t *testing.T) (*server.Server, audit.Storage) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewDefaultConfig()

	plugins := plugin.NewManager(cfg.Plugins, logger)
	confEngine := confidence.NewEngine(cfg.Confidence, confidence.NewDefaultRegistry(), logger)
	disambEngine := disambiguation.NewEngine(
		disambiguation.NewKeywordStrategy(cfg.Disambiguation.Keyword, nil), nil, logger)

	storage, err := audit.NewSQLiteStorage(&audit.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	}, logger)
	if err != nil {
		t.Fatalf("failed to open audit storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	sink := audit.NewSink(storage, collector, logger)

	pipe, err := pipeline.New(pipeline.Config{}, pipeline.Deps{
		Detector:       pipeline.NewCandidateDetector(plugins),
		Redactor:       pipeline.NewTokenRedactor(),
		Plugins:        plugins,
		Confidence:     confEngine,
		Disambiguation: disambEngine,
		Audit:          sink,
		Collector:      collector,
	}, logger)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	runner, err := stream.NewRunner(stream.Config{Workers: 2}, pipe, collector, logger)
	if err != nil {
		t.Fatalf("failed to build runner: %v", err)
	}
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("failed to start runner: %v", err)
	}
	t.Cleanup(runner.Stop)
	go func() {
		for range runner.Results() {
		}
	}()

	checker := health.New(time.Second)
	server.RegisterChecks(checker, runner, plugins)

	srv := server.New(&cfg.Server, server.Deps{
		Pipeline:  pipe,
		Runner:    runner,
		Health:    checker,
		Collector: collector,
		Audit:     storage,
		Version:   "test",
	}, logger)
	return srv, storage
}

// TestRedactEndToEnd posts a document with candidate spans through the full
// stack and verifies the redaction, the audit record, and the probes.
func TestRedactEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv, storage := buildStack(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := map[string]any{
		"id":   "it-doc-1",
		"text": "Patient SSN 123-45-6789 on file.",
		"spans": []map[string]any{
			{"filterType": "SSN", "characterStart": 12, "characterEnd": 23, "confidence": 0.95},
		},
	}
	payload, _ := json.Marshal(body)

	resp, err := http.Post(ts.URL+"/v1/redact", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /v1/redact failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body: %s", resp.StatusCode, raw)
	}

	var result struct {
		DocumentID   string `json:"documentId"`
		RedactedText string `json:"redactedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.RedactedText != "Patient SSN {{SSN}} on file." {
		t.Errorf("redactedText = %q", result.RedactedText)
	}

	// Audit record landed in SQLite.
	records, err := storage.Query(context.Background(), &audit.Query{DocumentID: "it-doc-1"})
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].Outcome != "redacted" {
		t.Errorf("audit outcome = %q, want redacted", records[0].Outcome)
	}

	// Probes and metrics respond.
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/version"} {
		r, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		r.Body.Close()
		if r.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, r.StatusCode)
		}
	}

	// Audit endpoint serves what storage holds.
	r, err := http.Get(fmt.Sprintf("%s/v1/audit?document_id=%s", ts.URL, "it-doc-1"))
	if err != nil {
		t.Fatalf("GET /v1/audit failed: %v", err)
	}
	defer r.Body.Close()
	var auditResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&auditResp); err != nil {
		t.Fatalf("failed to decode audit response: %v", err)
	}
	if auditResp.Count != 1 {
		t.Errorf("audit count = %d, want 1", auditResp.Count)
	}
}
