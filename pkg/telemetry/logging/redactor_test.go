package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ssn", "patient ssn 123-45-6789 on file", "patient ssn ***-**-**** on file"},
		{"ssn no dashes", "id 123456789 matched", "id ***-**-**** matched"},
		{"mrn", "lookup MRN: 4481234 failed", "lookup MRN-******* failed"},
		{"email", "notify alice@example.org", "notify ***@***"},
		{"phone", "call (555) 123-4567 now", "call ***-***-**** now"},
		{"phone plain", "dial 555-123-4567", "dial ***-***-****"},
		{"ipv4", "peer 10.0.0.12 disconnected", "peer *.*.*.* disconnected"},
		{"clean", "rule compiled in 3ms", "rule compiled in 3ms"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.in); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSensitiveKey(t *testing.T) {
	for _, key := range []string{"password", "api_key", "Authorization", "patient_ssn"} {
		if !sensitiveKey(key) {
			t.Errorf("sensitiveKey(%q) = false", key)
		}
	}
	for _, key := range []string{"component", "document_id", "stage"} {
		if sensitiveKey(key) {
			t.Errorf("sensitiveKey(%q) = true", key)
		}
	}
}

func TestRedactHandlerScrubsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{RedactValues: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("span rejected",
		"excerpt", "ssn 123-45-6789 rejected",
		"api_key", "sk-live-abc123",
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got := entry["excerpt"]; got != "ssn ***-**-**** rejected" {
		t.Errorf("excerpt = %v", got)
	}
	if got := entry["api_key"]; got != "***" {
		t.Errorf("api_key = %v, sensitive keys must be masked outright", got)
	}
}

func TestRedactHandlerScrubsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{RedactValues: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.With("contact", "bob@example.com").Info("ready")

	out := buf.String()
	if strings.Contains(out, "bob@example.com") {
		t.Errorf("With attrs not redacted: %s", out)
	}
	if !strings.Contains(out, "***@***") {
		t.Errorf("expected redacted email, got %s", out)
	}
}
