// Package config loads the YAML settings that drive a build: which
// files to analyse (via glob include/exclude patterns) and the four
// booleans the core's external-interface contract names. It follows
// semspec's config package — a plain YAML-tagged struct with
// defaults, loaded and merged by a small Loader.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the conventional name of the project-level config file.
const FileName = "cxref.yaml"

// Config is the complete set of settings for one build.
type Config struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	TypesDependencies      bool `yaml:"types_dependencies"`
	FieldsDependencies     bool `yaml:"fields_dependencies"`
	TypedefsDependencies   bool `yaml:"typedefs_dependencies"`
	PropagateDepsDefToDecl bool `yaml:"propagate_deps_def_to_decl"`
	Verbose                bool `yaml:"verbose"`
}

// Default returns a Config with the defaults named in the external
// interface contract.
func Default() *Config {
	return &Config{
		Root:                   ".",
		Include:                []string{"**/*.c", "**/*.h"},
		Exclude:                nil,
		TypesDependencies:      true,
		FieldsDependencies:     true,
		TypedefsDependencies:   false,
		PropagateDepsDefToDecl: false,
		Verbose:                false,
	}
}

// Validate reports whether c names a usable build.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if len(c.Include) == 0 {
		return fmt.Errorf("include must name at least one pattern")
	}
	return nil
}

// LoadFromFile reads a YAML config file, merging it over Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes c as YAML to path, creating parent directories
// as needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Loader finds and loads the project config from the current or an
// ancestor directory, falling back to defaults when none exists.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a Loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load searches startDir and its ancestors for FileName and loads it,
// or returns Default() if none is found.
func (l *Loader) Load(startDir string) (*Config, error) {
	path := l.findProjectConfig(startDir)
	if path == "" {
		l.logger.Debug("no project config found, using defaults")
		cfg := Default()
		if abs, err := filepath.Abs(startDir); err == nil {
			cfg.Root = abs
		}
		return cfg, cfg.Validate()
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loaded project config", "path", path)
	if cfg.Root == "." || cfg.Root == "" {
		cfg.Root = filepath.Dir(path)
	}
	return cfg, cfg.Validate()
}

func (l *Loader) findProjectConfig(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
