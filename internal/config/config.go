// Package config loads the TOML configuration file of the manifest producer.
//
// Example:
//
//	[analysis]
//	mode = "requested"
//	apis = ["turnLampOn", "accessNetwork"]
//	workers = 4
//
//	[output]
//	dir = "manifests"
//
//	[logging]
//	level = "debug"
//
//	[wrappers]
//	lamp_ioctl = ["ioctl"]
package config

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/isseis/go-manifest-producer/internal/elfanalyzer"
	"github.com/isseis/go-manifest-producer/internal/logging"
	"github.com/isseis/go-manifest-producer/internal/safefileio"
)

// Default values for configuration fields
const (
	DefaultMode            = string(elfanalyzer.ModeAll)
	DefaultWorkers         = 1
	DefaultMaxBackwardScan = 50
	DefaultOutputDir       = "manifests"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = logging.FormatText
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	Analysis AnalysisSpec `toml:"analysis"`
	Output   OutputSpec   `toml:"output"`
	Logging  LoggingSpec  `toml:"logging"`

	// Wrappers maps extra import names to the syscalls they issue. Entries
	// replace built-in ones with the same name.
	Wrappers map[string][]string `toml:"wrappers"`
}

// AnalysisSpec configures the analysis pipeline.
type AnalysisSpec struct {
	// Mode is "all" or "requested".
	Mode string `toml:"mode"`

	// APIs are names of interest, matched as substrings.
	APIs []string `toml:"apis"`

	// APIList is a JSON file holding more names of interest.
	APIList string `toml:"api_list"`

	Workers         int `toml:"workers"`
	MaxBackwardScan int `toml:"max_backward_scan"`
}

// OutputSpec configures where manifests are written.
type OutputSpec struct {
	Dir string `toml:"dir"`
}

// LoggingSpec configures logging.Setup.
type LoggingSpec struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	content, err := safefileio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes content strictly: unknown keys are errors.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: unknown keys:\n%s", ErrInvalidConfig, strict.String())
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Analysis.Mode == "" {
		cfg.Analysis.Mode = DefaultMode
	}
	if cfg.Analysis.Workers == 0 {
		cfg.Analysis.Workers = DefaultWorkers
	}
	if cfg.Analysis.MaxBackwardScan == 0 {
		cfg.Analysis.MaxBackwardScan = DefaultMaxBackwardScan
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// Validate checks value ranges and enumerations.
func Validate(cfg *Config) error {
	if _, err := elfanalyzer.ParseMode(cfg.Analysis.Mode); err != nil {
		return fmt.Errorf("%w: analysis.mode: %w", ErrInvalidConfig, err)
	}
	if cfg.Analysis.Workers < 1 {
		return fmt.Errorf("%w: analysis.workers must be positive, got %d", ErrInvalidConfig, cfg.Analysis.Workers)
	}
	if cfg.Analysis.MaxBackwardScan < 1 {
		return fmt.Errorf("%w: analysis.max_backward_scan must be positive, got %d", ErrInvalidConfig, cfg.Analysis.MaxBackwardScan)
	}
	for i, api := range cfg.Analysis.APIs {
		if api == "" {
			return fmt.Errorf("%w: analysis.apis[%d] is empty", ErrInvalidConfig, i)
		}
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", ErrInvalidConfig, err)
	}
	if cfg.Logging.Format != logging.FormatText && cfg.Logging.Format != logging.FormatJSON {
		return fmt.Errorf("%w: logging.format must be %q or %q, got %q",
			ErrInvalidConfig, logging.FormatText, logging.FormatJSON, cfg.Logging.Format)
	}
	for name, syscalls := range cfg.Wrappers {
		if len(syscalls) == 0 {
			return fmt.Errorf("%w: wrappers.%s lists no syscalls", ErrInvalidConfig, name)
		}
	}
	return nil
}
