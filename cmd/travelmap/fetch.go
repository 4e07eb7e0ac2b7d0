package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"travelmap/pkg/auth"
	"travelmap/pkg/checkpoint"
	"travelmap/pkg/config"
	"travelmap/pkg/instagram"
	"travelmap/pkg/logger"
	"travelmap/pkg/pipeline"
	"travelmap/pkg/ratelimit"
	"travelmap/pkg/retry"
	"travelmap/pkg/ui"
)

// tokens close to expiry get a refresh reminder
const expiryWarning = 7 * 24 * time.Hour

var (
	accessToken    string
	userID         string
	accountName    string
	workers        int
	requestsPerMin int
	maxAttempts    int
	maxPages       int
	resumeFetch    bool
	forceRestart   bool
	noBackup       bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every post and rebuild the travel data",
	Long: `Fetch the profile and every post of the account from the Instagram Graph
API, locate each post, and replace the travel-data, summary and profile
documents in the data directory.

The access token is taken from, in order:
  - the --access-token flag
  - TRAVELMAP_ACCESS_TOKEN or INSTAGRAM_ACCESS_TOKEN
  - the configuration file
  - the token stored with 'travelmap auth exchange'

Every fetched page is recorded in a checkpoint. An interrupted fetch can be
continued with --resume or discarded with --force-restart.`,
	Example: `  # Fetch with the stored token
  travelmap fetch

  # Continue an interrupted fetch
  travelmap fetch --resume

  # Fetch two pages now, the rest later
  travelmap fetch --max-pages 2
  travelmap fetch --resume`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&accessToken, "access-token", "", "Instagram Graph API access token")
	fetchCmd.Flags().StringVar(&userID, "user-id", "", "Instagram user id (default: me)")
	fetchCmd.Flags().StringVarP(&accountName, "account", "a", "", "use the token stored for this account")
	fetchCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent caption extractors")
	fetchCmd.Flags().IntVar(&requestsPerMin, "requests-per-minute", 0, "Graph API requests per minute")
	fetchCmd.Flags().IntVar(&maxAttempts, "max-attempts", -1, "maximum attempts per request")
	fetchCmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 fetches all)")
	fetchCmd.Flags().BoolVar(&resumeFetch, "resume", false, "resume from the last checkpoint")
	fetchCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint and start over")
	fetchCmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not back up the previous travel data")

	fetchCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"access-token":        accessToken,
		"user-id":             userID,
		"workers":             workers,
		"requests-per-minute": requestsPerMin,
		"max-attempts":        maxAttempts,
		"no-backup":           noBackup,
	})
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	if err := resolveToken(cfg); err != nil {
		return err
	}

	client := instagram.NewClient(cfg.Instagram,
		instagram.WithLogger(log),
		instagram.WithLimiter(ratelimit.FromConfig(cfg.RateLimit)),
		instagram.WithRetry(retry.FromConfig(cfg.Retry, log)),
		instagram.WithPageDelay(cfg.RateLimit.PageDelay),
	)

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	checkpoints, err := checkpoint.NewManager(filepath.Join(cfg.Output.DataDirectory, ".checkpoints"), cfg.Instagram.UserID)
	if err != nil {
		return err
	}
	if forceRestart {
		if err := checkpoints.BackupCheckpoint(); err != nil {
			log.WithError(err).Warn("Failed to back up checkpoint")
		}
	}

	aggregator, err := newAggregator(cfg)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, store, aggregator,
		pipeline.WithSource(client),
		pipeline.WithCheckpoints(checkpoints),
		pipeline.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintLogo()
	ui.PrintInfo("Data directory", cfg.Output.DataDirectory)
	ui.PrintHighlight("[FETCHING POSTS]")

	report, err := p.Fetch(ctx, pipeline.FetchOptions{
		Resume:       resumeFetch,
		ForceRestart: forceRestart,
		MaxPages:     maxPages,
	})
	if stderrors.Is(err, pipeline.ErrCheckpointExists) {
		if info, infoErr := checkpoints.GetCheckpointInfo(); infoErr == nil && info != nil {
			ui.PrintWarning("Unfinished fetch found")
			ui.PrintInfo("Posts fetched", fmt.Sprint(info["fetched"]))
			ui.PrintInfo("Last page", fmt.Sprint(info["last_page"]))
			ui.PrintInfo("Last updated", fmt.Sprint(info["updated_at"]))
		}
		return err
	}
	if err != nil {
		if report != nil && report.Fetched > 0 {
			ui.PrintWarning(fmt.Sprintf("Fetch stopped after %d posts; run again with --resume", report.Fetched))
		}
		return err
	}

	if report.Partial {
		ui.PrintWarning(fmt.Sprintf("Stopped after %d pages with %d posts; run again with --resume to finish", maxPages, report.Fetched))
		return nil
	}

	printFetchReport(report)
	return nil
}

// resolveToken fills in the access token from the token store when neither
// flags, environment nor config file supplied one
func resolveToken(cfg *config.Config) error {
	if cfg.Instagram.AccessToken != "" && accountName == "" {
		return nil
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	var token *auth.Token
	if accountName != "" {
		token, err = manager.Retrieve(accountName)
	} else {
		token, err = manager.RetrieveDefault()
	}
	if err != nil {
		ui.PrintError("No access token found", "")
		fmt.Fprintln(ui.Err, "\nStore one with:")
		fmt.Fprintln(ui.Err, "  travelmap auth exchange <authorization-code>")
		fmt.Fprintln(ui.Err, "\nor set TRAVELMAP_ACCESS_TOKEN.")
		return err
	}

	now := time.Now()
	switch {
	case token.Expired(now):
		return fmt.Errorf("the stored token for %s expired on %s; run 'travelmap auth exchange' again",
			token.Username, token.ExpiresAt.Format("2006-01-02"))
	case token.ExpiresWithin(now, expiryWarning):
		ui.PrintWarning(fmt.Sprintf("Token expires on %s; run 'travelmap auth refresh'", token.ExpiresAt.Format("2006-01-02")))
	}

	cfg.Instagram.AccessToken = token.AccessToken
	if cfg.Instagram.UserID == "" && token.UserID != "" {
		cfg.Instagram.UserID = token.UserID
	}
	logger.WithField("account", token.Username).Info("Using stored token")
	return nil
}

func printFetchReport(report *pipeline.FetchReport) {
	ui.PrintSuccess("[TRAVEL DATA UPDATED]")
	if report.Profile != nil {
		ui.PrintInfo("Account", report.Profile.Username)
	}
	ui.PrintInfo("Posts fetched", fmt.Sprint(report.Fetched))
	ui.PrintInfo("Posts located", fmt.Sprintf("%d of %d", report.Summary.PostsWithLocation, report.Summary.TotalPosts))
	ui.PrintInfo("Countries", fmt.Sprint(report.Summary.TotalCountries))
	ui.PrintInfo("Cities", fmt.Sprint(report.Summary.TotalCities))
	if report.Backup != "" {
		ui.PrintInfo("Backup", report.Backup)
	}
	ui.PrintInfo("Duration", report.Duration.Round(time.Millisecond).String())
}
