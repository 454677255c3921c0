package confidence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk shape of a modifier rule file.
type RuleFile struct {
	// Modifiers is the rule list, applied in declaration order after the
	// built-in defaults.
	Modifiers []*Modifier `yaml:"modifiers"`
}

// LoadRules parses a YAML modifier rule file.
func LoadRules(path string) ([]*Modifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rule content.
func ParseRules(data []byte) ([]*Modifier, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	for i, m := range file.Modifiers {
		if m == nil {
			return nil, fmt.Errorf("rule %d is empty", i)
		}
		if m.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
	}
	return file.Modifiers, nil
}

// LoadRegistry builds a registry from the built-in defaults plus the rules
// in the given file. With an empty path, only the defaults are loaded.
func LoadRegistry(path string) (*Registry, error) {
	modifiers := DefaultModifiers()
	if path != "" {
		extra, err := LoadRules(path)
		if err != nil {
			return nil, err
		}
		modifiers = append(modifiers, extra...)
	}
	return NewRegistry(modifiers)
}
