package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "INKWELL_"

// FileSystem abstracts file reads so tests can use an in-memory fs.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the real file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Loader resolves a Config from defaults, an optional file and the
// environment.
type Loader struct {
	fs     FileSystem
	lookup func(string) (string, bool)
}

// NewLoader returns a loader reading the OS file system and environment.
func NewLoader() *Loader {
	return &Loader{fs: OSFS{}, lookup: os.LookupEnv}
}

// NewLoaderWith returns a loader with injected file system and environment
// lookup.
func NewLoaderWith(fsys FileSystem, lookup func(string) (string, bool)) *Loader {
	if fsys == nil {
		fsys = OSFS{}
	}
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{fs: fsys, lookup: lookup}
}

// Load resolves the configuration. An empty path skips the file layer; a
// path that does not exist is not an error.
func (l *Loader) Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := l.loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := l.loadEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *Config) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return fmt.Errorf("config file %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

func (l *Loader) loadEnv(cfg *Config) error {
	if v, ok := l.lookup(EnvPrefix + "NAMESPACE"); ok {
		cfg.Namespace = v
	}
	if v, ok := l.lookup(EnvPrefix + "LOG_LEVEL"); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := l.lookup(EnvPrefix + "MAX_REVISIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_REVISIONS: %w", EnvPrefix, err)
		}
		cfg.MaxRevisions = n
	}
	for name, dst := range map[string]*bool{
		"NORMALIZE_TEXT":    &cfg.NormalizeText,
		"VERIFY_INVARIANTS": &cfg.VerifyInvariants,
		"UNICODE_NFC":       &cfg.UnicodeNFC,
	} {
		v, ok := l.lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
	}
	return nil
}
