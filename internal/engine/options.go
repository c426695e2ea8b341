package engine

import (
	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/version"
	"github.com/dshills/inkwell/internal/logging"
)

// Option configures an Editor during creation.
type Option func(*Editor)

// WithConfig applies a resolved configuration.
func WithConfig(cfg config.Config) Option {
	return func(e *Editor) {
		e.namespace = cfg.Namespace
		e.maxRevisions = cfg.MaxRevisions
		e.normalizeText = cfg.NormalizeText
		e.verifyInvariants = cfg.VerifyInvariants
		e.unicodeNFC = cfg.UnicodeNFC
	}
}

// WithRegistry replaces the variant registry. The registry must contain
// the built-in variants; use node.NewRegistry and register on top of it.
func WithRegistry(r *node.Registry) Option {
	return func(e *Editor) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithInitialState starts the editor from a previously built version.
func WithInitialState(s *version.State) Option {
	return func(e *Editor) {
		if s != nil {
			e.current = s
		}
	}
}

// WithTextNormalization enables or disables text normalization on commit.
func WithTextNormalization(enabled bool) Option {
	return func(e *Editor) {
		e.normalizeText = enabled
	}
}

// WithInvariantChecks enables child-list verification on commit.
func WithInvariantChecks() Option {
	return func(e *Editor) {
		e.verifyInvariants = true
	}
}

// WithMaxRevisions sets how many committed versions are retained.
func WithMaxRevisions(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxRevisions = n
		}
	}
}

// WithUnicodeNormalization stores text passed to NewText, SetText and
// SpliceText in Unicode normalization form C.
func WithUnicodeNormalization(enabled bool) Option {
	return func(e *Editor) {
		e.unicodeNFC = enabled
	}
}
