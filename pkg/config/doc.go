// Package config provides configuration management for Umbra.
//
// This package handles loading, validating, and managing configuration
// from YAML files with environment variable overrides. It provides a
// type-safe configuration system with validation and sensible defaults.
//
// # Configuration Sources
//
// Configuration is loaded in the following order of precedence:
//  1. Environment variables (UMBRA_SECTION_FIELD)
//  2. YAML configuration file
//  3. Default values
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("umbra.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Component-owned sections (the confidence engine, plugin manager, queue,
// breaker, and supervisor) reuse the component packages' own config
// structs, so defaults applied inside those constructors and defaults
// applied here never disagree.
package config
