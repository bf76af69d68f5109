package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Every field can also be
// set from the command line; flags win over file values.
type Config struct {
	URLPrefix  string           `yaml:"url_prefix"`
	Inputs     []string         `yaml:"inputs,omitempty"`
	Output     OutputConfig     `yaml:"output"`
	Detection  DetectionConfig  `yaml:"detection"`
	Filtering  FilteringConfig  `yaml:"filtering,omitempty"`
	Derivation DerivationConfig `yaml:"derivation"`
	Manifest   string           `yaml:"manifest,omitempty"`  // CSV or TSV path
	FixedDate  string           `yaml:"fixed_date,omitempty"` // digits, padded to 14
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// OutputConfig controls the archive file.
type OutputConfig struct {
	Name     string    `yaml:"name,omitempty"`
	Mode     WriteMode `yaml:"mode,omitempty"`
	Gzip     *bool     `yaml:"gzip,omitempty"`
	Warcinfo *bool     `yaml:"warcinfo,omitempty"`
}

// GzipEnabled reports whether records are written as gzip members (default true).
func (o OutputConfig) GzipEnabled() bool { return o.Gzip == nil || *o.Gzip }

// WarcinfoEnabled reports whether a warcinfo record opens the archive (default true).
func (o OutputConfig) WarcinfoEnabled() bool { return o.Warcinfo == nil || *o.Warcinfo }

// DetectionConfig selects how content types and charsets are determined.
type DetectionConfig struct {
	Detector        DetectorKind  `yaml:"detector,omitempty"`
	Charset         string        `yaml:"charset,omitempty"` // none, auto, analysis or an encoding name
	NoXHTML         bool          `yaml:"no_xhtml,omitempty"`
	MimeOverrides   []string      `yaml:"mime_overrides,omitempty"` // ordered "pattern=mime"
	AnalysisURL     string        `yaml:"analysis_url,omitempty"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout,omitempty"`
	AnalysisCache   int           `yaml:"analysis_cache_size,omitempty"`
	AnalysisRetry   RetryConfig   `yaml:"analysis_retry,omitempty"`
}

// RetryConfig controls retries of failed analysis service requests. Zero
// retries sends every request once.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries,omitempty"`
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay time.Duration    `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration    `yaml:"max_delay,omitempty"`
}

// CharsetSetting splits the charset option into its mode and, for
// CharsetFixed, the configured encoding.
func (d DetectionConfig) CharsetSetting() (CharsetMode, string) {
	if mode, ok := charsetModeNormalizer.Lookup(d.Charset); ok {
		return mode, ""
	}
	return CharsetFixed, d.Charset
}

// UsesAnalysis reports whether the analysis service is needed by either the
// type detector or the charset mode.
func (d DetectionConfig) UsesAnalysis() bool {
	mode, _ := d.CharsetSetting()
	return d.Detector == DetectorAnalysis || mode == CharsetAnalysis
}

// FilteringConfig holds case-insensitive glob patterns applied to source paths.
type FilteringConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// DerivationConfig enables the secondary record rules.
type DerivationConfig struct {
	// IndexFiles nil means the defaults; an empty list disables index revisits.
	IndexFiles    []string `yaml:"index_files"`
	Conversions   string   `yaml:"conversions,omitempty"`
	Transclusions string   `yaml:"transclusions,omitempty"`
}

// LogConfig configures slog and the per-record item log.
type LogConfig struct {
	Level   LogLevel  `yaml:"level,omitempty"`
	Format  LogFormat `yaml:"format,omitempty"`
	ItemLog string    `yaml:"item_log,omitempty"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load loads configuration from the specified file. Environment variables
// (including those from .env files) are expanded before parsing.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML configuration and applies defaults. It does not validate;
// callers validate after command line overrides are merged.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.ApplyDefaults()
	return cfg
}
