package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the travel map tooling
type Config struct {
	// Instagram Graph API access
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for Graph API calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Where the travel data documents live
	Output OutputConfig `yaml:"output" json:"output"`

	// Reference table overrides
	Reference ReferenceConfig `yaml:"reference" json:"reference"`

	// Caption extraction settings
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	AccessToken  string        `yaml:"access_token" json:"access_token"`
	UserID       string        `yaml:"user_id" json:"user_id"`
	ClientID     string        `yaml:"client_id" json:"client_id"`
	ClientSecret string        `yaml:"client_secret" json:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri" json:"redirect_uri"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	OAuthURL     string        `yaml:"oauth_url" json:"oauth_url"`
	GraphVersion string        `yaml:"graph_version" json:"graph_version"`
	PageSize     int           `yaml:"page_size" json:"page_size"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	RequestsPerHour   int           `yaml:"requests_per_hour" json:"requests_per_hour"`
	PageDelay         time.Duration `yaml:"page_delay" json:"page_delay"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	DataDirectory     string `yaml:"data_directory" json:"data_directory"`
	DataFile          string `yaml:"data_file" json:"data_file"`
	SummaryFile       string `yaml:"summary_file" json:"summary_file"`
	ProfileFile       string `yaml:"profile_file" json:"profile_file"`
	BackupBeforeWrite bool   `yaml:"backup_before_write" json:"backup_before_write"`
}

// ReferenceConfig points at an optional reference table file that replaces
// the embedded country, city and centroid tables
type ReferenceConfig struct {
	TablesFile string `yaml:"tables_file" json:"tables_file"`
}

// ExtractionConfig holds caption extraction settings
type ExtractionConfig struct {
	Workers  int           `yaml:"workers" json:"workers"`
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			BaseURL:      "https://graph.instagram.com",
			OAuthURL:     "https://api.instagram.com",
			GraphVersion: "v18.0",
			PageSize:     100,
			Timeout:      30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         1,
			RequestsPerHour:   200,
			PageDelay:         time.Second,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Output: OutputConfig{
			DataDirectory:     "./travel-map/data",
			DataFile:          "travel-data.json",
			SummaryFile:       "summary.json",
			ProfileFile:       "user-profile.json",
			BackupBeforeWrite: true,
		},
		Extraction: ExtractionConfig{
			Workers:  4,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// envLookup returns the first non-empty value among the given variable names
func envLookup(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables. Unprefixed
// INSTAGRAM_* variables are accepted as a fallback for the prefixed ones.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := envLookup("TRAVELMAP_ACCESS_TOKEN", "INSTAGRAM_ACCESS_TOKEN"); v != "" {
		c.Instagram.AccessToken = v
	}
	if v := envLookup("TRAVELMAP_USER_ID", "INSTAGRAM_USER_ID", "INSTAGRAM_BUSINESS_ACCOUNT_ID"); v != "" {
		c.Instagram.UserID = v
	}
	if v := envLookup("TRAVELMAP_CLIENT_ID", "INSTAGRAM_CLIENT_ID"); v != "" {
		c.Instagram.ClientID = v
	}
	if v := envLookup("TRAVELMAP_CLIENT_SECRET", "INSTAGRAM_CLIENT_SECRET"); v != "" {
		c.Instagram.ClientSecret = v
	}
	if v := envLookup("TRAVELMAP_REDIRECT_URI", "INSTAGRAM_REDIRECT_URI"); v != "" {
		c.Instagram.RedirectURI = v
	}
	if v := os.Getenv("TRAVELMAP_BASE_URL"); v != "" {
		c.Instagram.BaseURL = v
	}

	if v := os.Getenv("TRAVELMAP_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRAVELMAP_REQUESTS_PER_MINUTE: %w", err))
		} else if n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}

	if v := os.Getenv("TRAVELMAP_DATA_DIR"); v != "" {
		c.Output.DataDirectory = v
	}
	if v := os.Getenv("TRAVELMAP_TABLES_FILE"); v != "" {
		c.Reference.TablesFile = v
	}

	if v := os.Getenv("TRAVELMAP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRAVELMAP_WORKERS: %w", err))
		} else if n > 0 {
			c.Extraction.Workers = n
		}
	}

	if v := os.Getenv("TRAVELMAP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TRAVELMAP_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"travelmap.yaml",
		".travelmap.yaml",
		".travelmap.yml",
		filepath.Join(home, ".config", "travelmap", "config.yaml"),
		filepath.Join(home, ".config", "travelmap", "config.yml"),
		filepath.Join(home, ".travelmap.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// required here; commands that talk to Instagram check them on their own.
func (c *Config) Validate() error {
	var errs []error

	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base URL is required"))
	}
	if c.Instagram.GraphVersion == "" {
		errs = append(errs, errors.New("graph API version is required"))
	}
	if c.Instagram.PageSize <= 0 || c.Instagram.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}
	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.RequestsPerHour < 0 {
		errs = append(errs, errors.New("requests per hour cannot be negative"))
	}
	if c.RateLimit.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Multiplier < 1 && c.Retry.Enabled {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Output.DataDirectory == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.Output.DataFile == "" {
		errs = append(errs, errors.New("data file name is required"))
	}

	if c.Extraction.Workers <= 0 {
		errs = append(errs, errors.New("extraction workers must be positive"))
	}
	if c.Extraction.Workers > 64 {
		errs = append(errs, errors.New("extraction workers should not exceed 64"))
	}
	if c.Extraction.CacheTTL < 0 {
		errs = append(errs, errors.New("cache TTL cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// DataPath returns the full path of the travel data document
func (c *Config) DataPath() string {
	return filepath.Join(c.Output.DataDirectory, c.Output.DataFile)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may carry the client secret
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["access-token"].(string); ok && token != "" {
		c.Instagram.AccessToken = token
	}
	if userID, ok := flags["user-id"].(string); ok && userID != "" {
		c.Instagram.UserID = userID
	}
	if dataDir, ok := flags["data-dir"].(string); ok && dataDir != "" {
		c.Output.DataDirectory = dataDir
	}
	if tables, ok := flags["tables"].(string); ok && tables != "" {
		c.Reference.TablesFile = tables
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Extraction.Workers = workers
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts >= 0 {
		c.Retry.MaxAttempts = attempts
	}
	if noBackup, ok := flags["no-backup"].(bool); ok && noBackup {
		c.Output.BackupBeforeWrite = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".travelmap.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
