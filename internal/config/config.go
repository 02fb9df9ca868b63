// =============================================================================
// Receipt Ledger - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the application
// configuration. A single YAML file (settings.yaml by default) holds:
//   1. FNS API settings: credentials, endpoint, pacing
//   2. Output settings: ledger file, date/month layouts, amount unit, encoding
//   3. Logging settings
//   4. Metrics settings
//
// Credentials can be supplied through the environment instead of the file:
//   FNS_PHONE_NUMBER, FNS_PASSWORD
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Amount units supported for the ledger money columns.
const (
	UnitKopecks = "kopecks"
	UnitRubles  = "rubles"
	UnitDecimal = "decimal"
)

// Ledger encodings.
const (
	EncodingUTF8        = "UTF-8"
	EncodingWindows1251 = "Windows-1251"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// DefaultBaseURL is the FNS receipt verification endpoint.
const DefaultBaseURL = "https://proverkacheka.nalog.ru:9999"

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config holds the whole application configuration.
type Config struct {
	FNS     FNSConfig     `yaml:"fns"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// FNSConfig holds the settings for the receipt verification API.
type FNSConfig struct {
	// PhoneNumber and Password are the basic auth credentials issued by the
	// FNS mobile application.
	PhoneNumber string `yaml:"phone_number"`
	Password    string `yaml:"password"`

	// BaseURL is the scheme, host and port of the API.
	// Default: "https://proverkacheka.nalog.ru:9999"
	BaseURL string `yaml:"base_url"`

	// DeviceID and DeviceOS are sent as the Device-Id and Device-OS headers.
	// The API accepts empty values.
	DeviceID string `yaml:"device_id"`
	DeviceOS string `yaml:"device_os"`

	// APICallDelay is the fixed pause between any two API calls. Zero
	// disables pacing.
	// Default: 1s
	APICallDelay *time.Duration `yaml:"api_call_delay"`

	// Timeout bounds a single HTTP request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxPendingAttempts caps how many times a receipt answered with
	// "pending" (HTTP 202) is fetched again. Zero means no limit.
	// Default: 30
	MaxPendingAttempts *int `yaml:"max_pending_attempts"`
}

// OutputConfig holds the ledger file settings.
type OutputConfig struct {
	// Filename is the CSV ledger that is read, merged and written back.
	// Default: "receipts.csv"
	Filename string `yaml:"filename"`

	// DateFormat and MonthFormat are Go time layouts used to derive the
	// date and month columns from the receipt timestamp.
	// Defaults: "2006-01-02" and "2006-01"
	DateFormat  string `yaml:"date_format"`
	MonthFormat string `yaml:"month_format"`

	// AmountUnit selects how price, sum and receipt_sum are rendered:
	//   "kopecks" - integer kopecks
	//   "rubles"  - integer rubles, truncated
	//   "decimal" - rubles with two decimal places
	// Default: "kopecks"
	AmountUnit string `yaml:"amount_unit"`

	// Delimiter is the CSV field separator.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the ledger file.
	// Valid values: "UTF-8", "Windows-1251"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// XLSXFilename, when set, receives an XLSX copy of the ledger on save.
	XLSXFilename string `yaml:"xlsx_filename"`

	// BackupDir, when set, receives a copy of the previous ledger before it
	// is overwritten.
	BackupDir string `yaml:"backup_dir"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "console" or "json".
	// Default: "console"
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	// Textfile is a path in the node_exporter textfile collector directory.
	// Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration from a YAML file, applies environment
// overrides and defaults, and validates the result.
//
// A missing file is not an error: the defaults plus environment overrides
// are used instead, which is enough for the offline commands.
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides replaces credentials with environment values when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FNS_PHONE_NUMBER"); v != "" {
		cfg.FNS.PhoneNumber = v
	}
	if v := os.Getenv("FNS_PASSWORD"); v != "" {
		cfg.FNS.Password = v
	}
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.FNS.BaseURL == "" {
		cfg.FNS.BaseURL = DefaultBaseURL
	}
	cfg.FNS.BaseURL = strings.TrimRight(cfg.FNS.BaseURL, "/")
	if cfg.FNS.APICallDelay == nil {
		delay := time.Second
		cfg.FNS.APICallDelay = &delay
	}
	if cfg.FNS.Timeout == 0 {
		cfg.FNS.Timeout = 30 * time.Second
	}
	if cfg.FNS.MaxPendingAttempts == nil {
		attempts := 30
		cfg.FNS.MaxPendingAttempts = &attempts
	}

	if cfg.Output.Filename == "" {
		cfg.Output.Filename = "receipts.csv"
	}
	if cfg.Output.DateFormat == "" {
		cfg.Output.DateFormat = "2006-01-02"
	}
	if cfg.Output.MonthFormat == "" {
		cfg.Output.MonthFormat = "2006-01"
	}
	if cfg.Output.AmountUnit == "" {
		cfg.Output.AmountUnit = UnitKopecks
	}
	if cfg.Output.Delimiter == "" {
		cfg.Output.Delimiter = ","
	}
	if cfg.Output.Encoding == "" {
		cfg.Output.Encoding = EncodingUTF8
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = FormatConsole
	}
}

// Validate checks option values. Credentials are checked separately by
// RequireCredentials because only the fetch command needs them.
func (c *Config) Validate() error {
	if c.FNS.APICallDelay != nil && *c.FNS.APICallDelay < 0 {
		return fmt.Errorf("fns.api_call_delay must not be negative")
	}
	if c.FNS.Timeout < 0 {
		return fmt.Errorf("fns.timeout must not be negative")
	}
	if c.FNS.MaxPendingAttempts != nil && *c.FNS.MaxPendingAttempts < 0 {
		return fmt.Errorf("fns.max_pending_attempts must not be negative")
	}

	switch c.Output.AmountUnit {
	case UnitKopecks, UnitRubles, UnitDecimal:
	default:
		return fmt.Errorf("unknown output.amount_unit %q", c.Output.AmountUnit)
	}

	if NormalizeEncoding(c.Output.Encoding) == "" {
		return fmt.Errorf("unsupported output.encoding %q", c.Output.Encoding)
	}

	switch c.Logging.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}

	return nil
}

// RequireCredentials reports an error when the API credentials are missing.
func (c *Config) RequireCredentials() error {
	if c.FNS.PhoneNumber == "" {
		return fmt.Errorf("fns.phone_number is required (or set FNS_PHONE_NUMBER)")
	}
	if c.FNS.Password == "" {
		return fmt.Errorf("fns.password is required (or set FNS_PASSWORD)")
	}
	return nil
}

// CallDelay returns the configured pause between API calls.
func (c *Config) CallDelay() time.Duration {
	if c.FNS.APICallDelay == nil {
		return 0
	}
	return *c.FNS.APICallDelay
}

// PendingAttempts returns the configured pending retry cap.
func (c *Config) PendingAttempts() int {
	if c.FNS.MaxPendingAttempts == nil {
		return 0
	}
	return *c.FNS.MaxPendingAttempts
}

// NormalizeEncoding maps accepted spellings to the canonical encoding name.
// It returns "" for unsupported encodings.
func NormalizeEncoding(name string) string {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return EncodingUTF8
	case "windows-1251", "cp1251", "win1251":
		return EncodingWindows1251
	default:
		return ""
	}
}
