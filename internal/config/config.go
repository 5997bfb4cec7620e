package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ledgerdesk/internal/core"
	"ledgerdesk/internal/wizard"
)

type Config struct {
	// HTTP Server
	Port      string `toml:"port"`
	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`

	// Backend selection
	DataBackend  string `toml:"data_backend"`
	SQLiteDBPath string `toml:"sqlite_db_path"`
	SeedFile     string `toml:"seed_file"`

	// AMQP
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets journal
	GoogleSpreadsheetID   string `toml:"google_spreadsheet_id"`
	GoogleSheetName       string `toml:"google_sheet_name"`
	GoogleOAuthClientFile string `toml:"google_oauth_client_file"`
	GoogleOAuthTokenFile  string `toml:"google_oauth_token_file"`
	GoogleOAuthClientJSON string `toml:"-"`
	GoogleOAuthTokenJSON  string `toml:"-"`

	// Worker
	ExportBatchSize int           `toml:"export_batch_size"`
	ExportInterval  time.Duration `toml:"export_interval"`

	// Sessions and caches
	WizardCompletion string        `toml:"wizard_completion"`
	SessionTTL       time.Duration `toml:"session_ttl"`
	SessionCapacity  int           `toml:"session_capacity"`
	ReportCacheTTL   time.Duration `toml:"report_cache_ttl"`

	// Rate limit for mutating requests, per client IP
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`

	// Bank account field encryption
	FieldKeyPassphrase string `toml:"-"`
	FieldKeySalt       string `toml:"field_key_salt"`

	// Tax codes to rates, e.g. CA = "0.0725"
	TaxRates map[string]string `toml:"tax_rates"`

	// Client side (ledgerctl)
	APIURL     string        `toml:"api_url"`
	APITimeout time.Duration `toml:"api_timeout"`

	// File is the TOML file the values were read from, if any.
	File string `toml:"-"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:      "8080",
		LogFormat: "text",
		LogLevel:  "info",

		DataBackend:  "memory",
		SQLiteDBPath: "./data/ledgerdesk.db",

		AMQPExchange: "ledgerdesk",
		AMQPQueue:    "journal_export",

		GoogleSheetName: "Journal",

		ExportBatchSize: 25,
		ExportInterval:  time.Minute,

		WizardCompletion: wizard.StickyCompletion{}.Name(),
		SessionTTL:       30 * time.Minute,
		SessionCapacity:  1000,
		ReportCacheTTL:   15 * time.Second,

		RateLimitPerMinute: 120,

		FieldKeySalt: "ledgerdesk-field-salt",

		TaxRates: map[string]string{},

		APIURL:     "http://localhost:8080",
		APITimeout: 10 * time.Second,
	}
}

// Load starts from Defaults, overlays the TOML file named by
// LEDGERDESK_CONFIG when set, then applies environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("LEDGERDESK_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the values present in a TOML file.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.DataBackend, "DATA_BACKEND")
	setString(&c.SQLiteDBPath, "SQLITE_DB_PATH")
	setString(&c.SeedFile, "SEED_FILE")

	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.AMQPExchange, "AMQP_EXCHANGE")
	setString(&c.AMQPQueue, "AMQP_QUEUE")

	setString(&c.GoogleSpreadsheetID, "GOOGLE_SPREADSHEET_ID")
	setString(&c.GoogleSheetName, "GOOGLE_SHEET_NAME")
	setString(&c.GoogleOAuthClientFile, "GOOGLE_OAUTH_CLIENT_FILE")
	setString(&c.GoogleOAuthTokenFile, "GOOGLE_OAUTH_TOKEN_FILE")
	setString(&c.GoogleOAuthClientJSON, "GOOGLE_OAUTH_CLIENT_JSON")
	setString(&c.GoogleOAuthTokenJSON, "GOOGLE_OAUTH_TOKEN_JSON")

	setInt(&c.ExportBatchSize, "EXPORT_BATCH_SIZE")
	setDuration(&c.ExportInterval, "EXPORT_INTERVAL")

	setString(&c.WizardCompletion, "WIZARD_COMPLETION")
	setDuration(&c.SessionTTL, "SESSION_TTL")
	setInt(&c.SessionCapacity, "SESSION_CAPACITY")
	setDuration(&c.ReportCacheTTL, "REPORT_CACHE_TTL")

	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")

	setString(&c.FieldKeyPassphrase, "FIELD_KEY_PASSPHRASE")
	setString(&c.FieldKeySalt, "FIELD_KEY_SALT")

	if v := os.Getenv("TAX_RATES"); v != "" {
		c.TaxRates = parseTaxRates(v)
	}

	setString(&c.APIURL, "LEDGERDESK_API_URL")
	setDuration(&c.APITimeout, "LEDGERDESK_API_TIMEOUT")
}

// parseTaxRates reads "CA=0.0725,NY=0.08875". Malformed pairs are kept with
// an empty rate so Validate reports them.
func parseTaxRates(v string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, rate, _ := strings.Cut(pair, "=")
		out[strings.TrimSpace(code)] = strings.TrimSpace(rate)
	}
	return out
}

// TaxTable parses the configured tax rates.
func (c *Config) TaxTable() (core.TaxTable, error) {
	return core.ParseTaxTable(c.TaxRates)
}

// Completion returns the configured wizard completion policy.
func (c *Config) Completion() wizard.CompletionPolicy {
	if p, ok := wizard.PolicyByName(c.WizardCompletion); ok {
		return p
	}
	return wizard.StickyCompletion{}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
		if c.FieldKeyPassphrase == "" {
			errors = append(errors, "FIELD_KEY_PASSPHRASE is required when using sqlite backend")
		}
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file not readable: %s", c.SeedFile))
		}
	}
	if len(c.FieldKeySalt) < 8 {
		errors = append(errors, "field key salt must be at least 8 characters")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// The journal is optional; once a spreadsheet is named it needs credentials.
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasClientFile := c.GoogleOAuthClientFile != ""
		if !hasClientFile && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for the sheets journal")
		}
		hasTokenFile := c.GoogleOAuthTokenFile != ""
		if !hasTokenFile && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for the sheets journal")
		}
		if hasClientFile {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	// Validate worker configuration
	if c.ExportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}
	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if _, ok := wizard.PolicyByName(c.WizardCompletion); !ok {
		errors = append(errors, fmt.Sprintf("invalid wizard completion '%s': must be sticky or revalidate", c.WizardCompletion))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionCapacity < 1 {
		errors = append(errors, fmt.Sprintf("invalid session capacity %d: must be at least 1", c.SessionCapacity))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	codes := make([]string, 0, len(c.TaxRates))
	for code := range c.TaxRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if _, err := core.ParseTaxTable(map[string]string{code: c.TaxRates[code]}); err != nil {
			errors = append(errors, err.Error())
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*dst = d
		}
	}
}
