package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"travelmap/pkg/auth"
	"travelmap/pkg/config"
	"travelmap/pkg/geo"
	"travelmap/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage travelmap configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TRAVELMAP_*, INSTAGRAM_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'travelmap.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Secrets like the access token and client secret are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - The reference tables file, when one is set
  - Path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# travelmap configuration file
#
# Every option can also be set with an environment variable prefixed with
# TRAVELMAP_, for example TRAVELMAP_ACCESS_TOKEN or TRAVELMAP_DATA_DIR.

# Instagram Graph API access
instagram:
  # Long-lived access token. Prefer 'travelmap auth exchange', which keeps
  # the token in the system keychain instead of this file.
  access_token: ""

  # Account to read; empty means the token's own account (me)
  user_id: ""

  # Instagram app credentials, needed only for 'travelmap auth'
  client_id: ""
  client_secret: ""
  redirect_uri: ""

  graph_version: "v18.0"

  # Posts per page
  # Range: 1-100
  page_size: 100
  timeout: 30s

# Rate limiting for Graph API calls
rate_limit:
  requests_per_minute: 60
  burst_size: 1
  # Rolling hourly cap; 0 disables it
  requests_per_hour: 200
  # Pause between media pages
  page_delay: 1s

# Retry configuration
retry:
  enabled: true
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  multiplier: 2.0
  jitter_factor: 0.1

# Travel data documents
output:
  data_directory: "./travel-map/data"
  data_file: "travel-data.json"
  summary_file: "summary.json"
  profile_file: "user-profile.json"
  # Copy the previous travel data aside before each fetch
  backup_before_write: true

# Reference tables
reference:
  # YAML file merged over the built-in countries, aliases, cities and
  # centroids. Leave empty to use the built-in tables only.
  tables_file: ""

# Caption extraction
extraction:
  # Concurrent extractors during a fetch
  # Range: 1-64
  workers: 4
  # How long extraction results are memoized
  cache_ttl: 10m

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""

  # Maximum log file size in MB
  max_size: 100

  # Maximum number of old log files to keep
  max_backups: 3

  # Maximum age of log files in days
  max_age: 7
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "travelmap.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add your Instagram app credentials to the configuration file")
	fmt.Println("2. Run 'travelmap auth url' and 'travelmap auth exchange <code>'")
	fmt.Println("3. Run 'travelmap config validate' to check the configuration")
	fmt.Println("4. Build the travel data with 'travelmap fetch'")
	return nil
}

// masked returns a copy of cfg that is safe to print
func masked(cfg *config.Config) config.Config {
	display := *cfg
	if display.Instagram.AccessToken != "" {
		display.Instagram.AccessToken = auth.MaskString(display.Instagram.AccessToken)
	}
	if display.Instagram.ClientSecret != "" {
		display.Instagram.ClientSecret = auth.MaskString(display.Instagram.ClientSecret)
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := masked(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TRAVELMAP_*, INSTAGRAM_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched in default locations)")
	}
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	warnings := []string{}
	problems := []string{}

	if cfg.Instagram.AccessToken == "" {
		warnings = append(warnings, "no access token configured; 'travelmap fetch' will use the stored token")
	}
	if cfg.Instagram.ClientID == "" || cfg.Instagram.RedirectURI == "" {
		warnings = append(warnings, "client_id or redirect_uri missing; 'travelmap auth' will not work")
	}

	if err := os.MkdirAll(cfg.Output.DataDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create data directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	tables, err := geo.Load(cfg.Reference.TablesFile)
	if err != nil {
		problems = append(problems, fmt.Sprintf("reference tables: %v", err))
	} else if gaps := tables.MissingCentroids(); len(gaps) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d countries have no centroid", len(gaps)))
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Data directory: %s\n", cfg.Output.DataDirectory)
	fmt.Printf("  Extraction workers: %d\n", cfg.Extraction.Workers)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	if tables != nil {
		fmt.Printf("  Reference tables: %s (%d countries)\n", tables.Version(), len(tables.Countries()))
	}
	return nil
}
