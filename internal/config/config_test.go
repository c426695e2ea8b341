package config

import (
	"errors"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
	if cfg.Namespace != DefaultNamespace {
		t.Errorf("expected namespace %q, got %q", DefaultNamespace, cfg.Namespace)
	}
	if cfg.MaxRevisions != DefaultMaxRevisions {
		t.Errorf("expected %d revisions, got %d", DefaultMaxRevisions, cfg.MaxRevisions)
	}
	if !cfg.NormalizeText || cfg.VerifyInvariants {
		t.Error("expected normalization on and verification off by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"warning alias", func(c *Config) { c.Log.Level = "warning" }, true},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, false},
		{"zero revisions", func(c *Config) { c.MaxRevisions = 0 }, false},
		{"negative revisions", func(c *Config) { c.MaxRevisions = -3 }, false},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
