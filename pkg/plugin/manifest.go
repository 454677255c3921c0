package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PluginType classifies what a plugin contributes.
type PluginType string

const (
	// TypeFilter plugins contribute a custom span detector.
	TypeFilter PluginType = "filter"

	// TypeFormatter plugins contribute an output formatter.
	TypeFormatter PluginType = "formatter"

	// TypeChannel plugins contribute an alert channel.
	TypeChannel PluginType = "channel"

	// TypeHook plugins contribute pipeline hooks only.
	TypeHook PluginType = "hook"
)

const (
	// DefaultPriority is used when a manifest omits priority.
	DefaultPriority = 50

	// DefaultTimeoutMs is used when a manifest omits timeoutMs.
	DefaultTimeoutMs = 5000

	maxPriority = 99

	// ManifestFileName is the per-plugin-directory manifest file.
	ManifestFileName = "manifest.json"
)

// Manifest describes one plugin, one JSON document per plugin directory.
type Manifest struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Description string     `json:"description,omitempty"`
	Type        PluginType `json:"type"`

	// Main names the entry point, resolved against the factory registry.
	Main string `json:"main"`

	// Priority orders hook execution, 0-99. Lower runs earlier except at
	// the postRedaction stage. Default: 50
	Priority *int `json:"priority,omitempty"`

	// TimeoutMs bounds each hook invocation. Default: 5000
	TimeoutMs *int `json:"timeoutMs,omitempty"`

	// Dependencies are plugin names that must load before this one.
	Dependencies []string `json:"dependencies,omitempty"`

	// Config is passed verbatim to the plugin factory.
	Config map[string]any `json:"config,omitempty"`
}

// LoadManifest reads and validates one manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks required fields and ranges.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin %q: version is required", m.Name)
	}
	if m.Main == "" {
		return fmt.Errorf("plugin %q: main is required", m.Name)
	}
	switch m.Type {
	case TypeFilter, TypeFormatter, TypeChannel, TypeHook:
	default:
		return fmt.Errorf("plugin %q: unknown type %q", m.Name, m.Type)
	}
	if m.Priority != nil && (*m.Priority < 0 || *m.Priority > maxPriority) {
		return fmt.Errorf("plugin %q: priority %d out of range [0, %d]", m.Name, *m.Priority, maxPriority)
	}
	if m.TimeoutMs != nil && *m.TimeoutMs <= 0 {
		return fmt.Errorf("plugin %q: timeoutMs must be positive", m.Name)
	}
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("plugin %q: depends on itself", m.Name)
		}
	}
	return nil
}

// EffectivePriority returns the declared priority or the default.
func (m *Manifest) EffectivePriority() int {
	if m.Priority != nil {
		return *m.Priority
	}
	return DefaultPriority
}

// EffectiveTimeout returns the declared hook timeout or the default.
func (m *Manifest) EffectiveTimeout() time.Duration {
	ms := DefaultTimeoutMs
	if m.TimeoutMs != nil {
		ms = *m.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
