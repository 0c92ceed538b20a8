// Package config handles configuration loading, validation, and management for scriptrec.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete scriptrec configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Conversion tunes how events become script lines.
	Conversion ConversionConfig `toml:"conversion" json:"conversion" yaml:"conversion"`

	// Capture selects how region snapshots are taken.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Output controls where .sikuli folders are written.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Storage configures the conversion history database.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Watch configures the watch command.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ConversionConfig holds the converter tunables.
type ConversionConfig struct {
	// Precision is the motion simplification tolerance in pixels.
	Precision float64 `toml:"precision" json:"precision" yaml:"precision"`

	// StepSize is the number of input samples per simplification window.
	StepSize int `toml:"step_size" json:"step_size" yaml:"step_size"`

	// Layout is the keyboard layout name, e.g. "US".
	Layout string `toml:"layout" json:"layout" yaml:"layout"`

	HighlightSeconds float64 `toml:"highlight_seconds" json:"highlight_seconds" yaml:"highlight_seconds"`
	HighlightColor   string  `toml:"highlight_color" json:"highlight_color" yaml:"highlight_color"`

	// Similarity is the match threshold written into Pattern clicks.
	Similarity float64 `toml:"similarity" json:"similarity" yaml:"similarity"`

	// SnapModulus and SnapThreshold control when hovering inside a
	// captured region triggers a fresh snapshot.
	SnapModulus   int `toml:"snap_modulus" json:"snap_modulus" yaml:"snap_modulus"`
	SnapThreshold int `toml:"snap_threshold" json:"snap_threshold" yaml:"snap_threshold"`

	// KeepFraming keeps the Enter/Escape pair that started and stopped the recorder.
	KeepFraming bool `toml:"keep_framing" json:"keep_framing" yaml:"keep_framing"`
}

// CaptureConfig holds screen capture configuration.
type CaptureConfig struct {
	// Backend is one of "screen", "synthetic" or "none".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Async moves capture and PNG encoding to a background worker.
	Async bool `toml:"async" json:"async" yaml:"async"`

	// QueueDepth bounds the async worker's backlog.
	QueueDepth int `toml:"queue_depth" json:"queue_depth" yaml:"queue_depth"`
}

// OutputConfig holds output location configuration.
type OutputConfig struct {
	// Dir is the directory .sikuli folders are created in. Empty means
	// the current directory.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Enabled records every conversion in the history database.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays prunes sessions older than this. Zero keeps everything.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// WatchConfig holds watch command configuration.
type WatchConfig struct {
	// DebounceMs is how long the events file must be quiet before re-converting.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`

	// MaskInput hides key names and typed text in log records.
	MaskInput bool `toml:"mask_input" json:"mask_input" yaml:"mask_input"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Conversion: ConversionConfig{
			Precision:        6,
			StepSize:         15,
			Layout:           "US",
			HighlightSeconds: 2,
			HighlightColor:   "#FF0000",
			Similarity:       0.9,
			SnapModulus:      20,
			SnapThreshold:    15,
		},
		Capture: CaptureConfig{
			Backend:    "screen",
			Async:      false,
			QueueDepth: 16,
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "history.db"),
			RetentionDays: 90,
		},
		Watch: WatchConfig{
			DebounceMs: 250,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "scriptrec.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
			MaskInput:  true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if p := os.Getenv("SCRIPTREC_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base scriptrec data directory.
// SCRIPTREC_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("SCRIPTREC_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Output.Dir}
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with SCRIPTREC_. Values that do not
// parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("SCRIPTREC_PRECISION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Conversion.Precision = f
		}
	}
	if v := os.Getenv("SCRIPTREC_STEP_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Conversion.StepSize = n
		}
	}
	if v := os.Getenv("SCRIPTREC_LAYOUT"); v != "" {
		c.Conversion.Layout = v
	}
	if v := os.Getenv("SCRIPTREC_CAPTURE_BACKEND"); v != "" {
		c.Capture.Backend = v
	}
	if v := os.Getenv("SCRIPTREC_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SCRIPTREC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCRIPTREC_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version:    c.Version,
		Conversion: c.Conversion,
		Capture:    c.Capture,
		Output:     c.Output,
		Storage:    c.Storage,
		Watch:      c.Watch,
		Logging:    c.Logging,
	}
}

// SaveConfig writes cfg to path, choosing the encoding by extension.
// TOML is used for unknown extensions.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Encode renders cfg in the format named by ext (".toml", ".json", ".yaml").
func Encode(cfg *Config, ext string) ([]byte, error) {
	c := cfg.Clone()
	switch ext {
	case ".json":
		return encodeJSON(c)
	case ".yaml", ".yml":
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	}
}
