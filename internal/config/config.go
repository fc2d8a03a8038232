// Package config provides YAML-based configuration for the DICOM tag exporter.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the config file cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Supported export formats.
var KnownFormats = []string{"csv", "json", "msgpack", "duckdb"}

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Paths used by a run
	Paths PathsConfig `yaml:"paths"`

	// Scanner options
	Scan ScanConfig `yaml:"scan"`

	// Sanitizer options
	Sanitize SanitizeConfig `yaml:"sanitize"`

	// Export options
	Export ExportConfig `yaml:"export"`

	// Logging options
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig contains input and output locations
type PathsConfig struct {
	InputDirectory  string `yaml:"input_directory"`
	OutputDirectory string `yaml:"output_directory"`
	DumpDirectory   string `yaml:"dump_directory"`
	LogDirectory    string `yaml:"log_directory"`
}

// ScanConfig controls which files are picked up
type ScanConfig struct {
	Recursive    bool     `yaml:"recursive"`
	Extensions   []string `yaml:"extensions"`
	SniffContent bool     `yaml:"sniff_content"`
}

// SanitizeConfig controls tag value cleaning
type SanitizeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Keep    string `yaml:"keep"` // Punctuation retained in addition to letters, digits and space
}

// ExportConfig controls output artifacts
type ExportConfig struct {
	BaseName    string   `yaml:"base_name"`
	Formats     []string `yaml:"formats"`
	QuoteAll    bool     `yaml:"quote_all"`
	DumpTags    bool     `yaml:"dump_tags"`
	DuckDBTable string   `yaml:"duckdb_table"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Paths: PathsConfig{
			InputDirectory:  "./data/input",
			OutputDirectory: "./data/output",
			DumpDirectory:   "./data/tag_dumps",
			LogDirectory:    "./logs",
		},
		Scan: ScanConfig{
			Recursive:    false,
			Extensions:   []string{".dcm", ".dicom"},
			SniffContent: true,
		},
		Sanitize: SanitizeConfig{
			Enabled: true,
			Keep:    "-+_:.|",
		},
		Export: ExportConfig{
			BaseName:    "export_dicom_tags",
			Formats:     []string{"csv", "json"},
			QuoteAll:    true,
			DumpTags:    true,
			DuckDBTable: "extracts",
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "dcmexport.log",
			Console: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	// Best-effort: .env next to the working directory
	_ = godotenv.Load()

	var config *AppConfig
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = DefaultConfig()
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s: %v", ErrInvalidConfig, configPath, err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# DICOM tag exporter configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if dir := strings.TrimSpace(os.Getenv("DCMEXPORT_INPUT_DIR")); dir != "" {
		c.Paths.InputDirectory = dir
	}
	if dir := strings.TrimSpace(os.Getenv("DCMEXPORT_OUTPUT_DIR")); dir != "" {
		c.Paths.OutputDirectory = dir
	}
	if dir := strings.TrimSpace(os.Getenv("DCMEXPORT_DUMP_DIR")); dir != "" {
		c.Paths.DumpDirectory = dir
	}
	if level := strings.TrimSpace(os.Getenv("DCMEXPORT_LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if formats := strings.TrimSpace(os.Getenv("DCMEXPORT_FORMATS")); formats != "" {
		c.Export.Formats = SplitList(formats)
	}
	if raw := strings.TrimSpace(os.Getenv("DCMEXPORT_RECURSIVE")); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			c.Scan.Recursive = b
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Paths.InputDirectory,
		&c.Paths.OutputDirectory,
		&c.Paths.DumpDirectory,
		&c.Paths.LogDirectory,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Validate checks option values that cannot be fixed up silently.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.Scan.Extensions) == 0 {
		errs = append(errs, errors.New("scan.extensions must not be empty"))
	}
	if len(c.Export.Formats) == 0 {
		errs = append(errs, errors.New("export.formats must not be empty"))
	}
	seen := make(map[string]struct{}, len(c.Export.Formats))
	for _, f := range c.Export.Formats {
		if !IsKnownFormat(f) {
			errs = append(errs, fmt.Errorf("unknown export format %q", f))
			continue
		}
		key := strings.ToLower(strings.TrimSpace(f))
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate export format %q", f))
		}
		seen[key] = struct{}{}
	}
	if strings.TrimSpace(c.Export.BaseName) == "" {
		errs = append(errs, errors.New("export.base_name must not be empty"))
	}
	return errors.Join(errs...)
}

// LogFilePath returns the absolute log file path, or "" when file logging is off.
func (c *AppConfig) LogFilePath() string {
	if c.Logging.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(c.Paths.LogDirectory, c.Logging.File)
}

// EnsureDirectories creates all output directories. The input directory is
// never created.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDirectory, c.Paths.LogDirectory}
	if c.Export.DumpTags {
		dirs = append(dirs, c.Paths.DumpDirectory)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// IsKnownFormat reports whether name is a supported export format.
func IsKnownFormat(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range KnownFormats {
		if f == name {
			return true
		}
	}
	return false
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
