package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"travelmap/pkg/config"
	"travelmap/pkg/geo"
	"travelmap/pkg/location"
	"travelmap/pkg/logger"
	"travelmap/pkg/patterns"
	"travelmap/pkg/storage"
	"travelmap/pkg/travel"
	"travelmap/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dataDir    string
	tablesFile string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "travelmap",
	Short: "Build a travel map from Instagram captions",
	Long: `travelmap reads the captions of an Instagram account, works out the
country and city each post was taken in, and writes the travel-data documents
a map page renders.

Captions are matched against an ordered cascade of patterns:
  - GPS coordinates
  - "Country • City" bullet captions
  - "City, Country" and city-only first lines
  - bare country names
  - legacy free-text phrasing`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./travelmap.yaml or $HOME/.config/travelmap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the travel data documents")
	rootCmd.PersistentFlags().StringVar(&tablesFile, "tables", "", "YAML file overriding the built-in reference tables")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`travelmap {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the global flags plus extra
// command flags merged on top, and initializes the global logger
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level": logLevel,
		"data-dir":  dataDir,
		"tables":    tablesFile,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newExtractor builds the caption extractor from the configured reference
// tables
func newExtractor(cfg *config.Config) (*location.Extractor, error) {
	tables, err := geo.Load(cfg.Reference.TablesFile)
	if err != nil {
		return nil, err
	}
	catalog, err := patterns.New(tables)
	if err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"tables": tables.Version(),
		"rules":  len(catalog.Rules()),
	}).Debug("Reference tables loaded")
	return location.New(tables, catalog, location.WithLogger(logger.GetLogger())), nil
}

// newAggregator builds an aggregator over a memoized extractor
func newAggregator(cfg *config.Config) (*travel.Aggregator, error) {
	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	cached := location.NewCached(extractor, cfg.Extraction.CacheTTL)
	return travel.NewAggregator(cached, extractor.Tables(), travel.WithAggregatorLogger(logger.GetLogger())), nil
}

// newStore opens the data directory
func newStore(cfg *config.Config) (*storage.Manager, error) {
	return storage.NewManager(cfg.Output.DataDirectory, logger.GetLogger())
}
