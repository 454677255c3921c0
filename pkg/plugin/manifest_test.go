package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestManifestValidate(t *testing.T) {
	valid := Manifest{Name: "scrub", Version: "1.0.0", Type: TypeHook, Main: "scrub"}

	tests := []struct {
		name    string
		mutate  func(m *Manifest)
		wantErr bool
	}{
		{"valid", func(m *Manifest) {}, false},
		{"missing name", func(m *Manifest) { m.Name = "" }, true},
		{"missing version", func(m *Manifest) { m.Version = "" }, true},
		{"missing main", func(m *Manifest) { m.Main = "" }, true},
		{"unknown type", func(m *Manifest) { m.Type = "widget" }, true},
		{"filter type", func(m *Manifest) { m.Type = TypeFilter }, false},
		{"priority too high", func(m *Manifest) { m.Priority = intPtr(100) }, true},
		{"priority negative", func(m *Manifest) { m.Priority = intPtr(-1) }, true},
		{"priority boundary", func(m *Manifest) { m.Priority = intPtr(99) }, false},
		{"zero timeout", func(m *Manifest) { m.TimeoutMs = intPtr(0) }, true},
		{"self dependency", func(m *Manifest) { m.Dependencies = []string{"scrub"} }, true},
		{"other dependency", func(m *Manifest) { m.Dependencies = []string{"base"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManifestDefaults(t *testing.T) {
	m := Manifest{Name: "p", Version: "1.0.0", Type: TypeHook, Main: "p"}

	if got := m.EffectivePriority(); got != DefaultPriority {
		t.Errorf("EffectivePriority() = %d, want %d", got, DefaultPriority)
	}
	if got := m.EffectiveTimeout(); got != 5*time.Second {
		t.Errorf("EffectiveTimeout() = %s, want 5s", got)
	}

	m.Priority = intPtr(10)
	m.TimeoutMs = intPtr(50)
	if got := m.EffectivePriority(); got != 10 {
		t.Errorf("declared EffectivePriority() = %d, want 10", got)
	}
	if got := m.EffectiveTimeout(); got != 50*time.Millisecond {
		t.Errorf("declared EffectiveTimeout() = %s, want 50ms", got)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	content := `{
		"name": "phone-scrubber",
		"version": "2.1.0",
		"type": "hook",
		"main": "phone-scrubber",
		"priority": 20,
		"timeoutMs": 250,
		"dependencies": ["base-rules"],
		"config": {"region": "US"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Name != "phone-scrubber" || m.Version != "2.1.0" {
		t.Errorf("identity = %s@%s, want phone-scrubber@2.1.0", m.Name, m.Version)
	}
	if m.EffectivePriority() != 20 {
		t.Errorf("priority = %d, want 20", m.EffectivePriority())
	}
	if m.EffectiveTimeout() != 250*time.Millisecond {
		t.Errorf("timeout = %s, want 250ms", m.EffectiveTimeout())
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0] != "base-rules" {
		t.Errorf("dependencies = %v, want [base-rules]", m.Dependencies)
	}
	if m.Config["region"] != "US" {
		t.Errorf("config region = %v, want US", m.Config["region"])
	}
}

func TestLoadManifestRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("LoadManifest accepted malformed JSON")
	}
}
