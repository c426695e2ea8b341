// Package config provides layered configuration for inkwell.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A config file, TOML or YAML by extension
//  3. INKWELL_* environment variables
//
// Example TOML:
//
//	namespace = "notes"
//	max_revisions = 50
//	normalize_text = true
//	verify_invariants = false
//	unicode_nfc = true
//
//	[log]
//	level = "debug"
package config

import (
	"errors"
	"fmt"
)

// Defaults.
const (
	DefaultNamespace    = "inkwell"
	DefaultMaxRevisions = 100
	DefaultLogLevel     = "info"
)

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved configuration.
type Config struct {
	// Namespace labels the editor in logs and exports.
	Namespace string `toml:"namespace" yaml:"namespace"`

	// MaxRevisions is how many committed versions are retained.
	MaxRevisions int `toml:"max_revisions" yaml:"max_revisions"`

	// NormalizeText merges adjacent simple text nodes and removes empty
	// ones on commit.
	NormalizeText bool `toml:"normalize_text" yaml:"normalize_text"`

	// VerifyInvariants re-walks every dirty element's child list on commit
	// and aborts the transaction if it is inconsistent.
	VerifyInvariants bool `toml:"verify_invariants" yaml:"verify_invariants"`

	// UnicodeNFC stores inserted text in normalization form C.
	UnicodeNFC bool `toml:"unicode_nfc" yaml:"unicode_nfc"`

	Log LogConfig `toml:"log" yaml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Namespace:     DefaultNamespace,
		MaxRevisions:  DefaultMaxRevisions,
		NormalizeText: true,
		Log:           LogConfig{Level: DefaultLogLevel},
	}
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalid)
	}
	if c.MaxRevisions <= 0 {
		return fmt.Errorf("%w: max_revisions must be positive, got %d", ErrInvalid, c.MaxRevisions)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}
