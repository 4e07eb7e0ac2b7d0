package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"travelmap/pkg/pipeline"
	"travelmap/pkg/travel"
	"travelmap/pkg/ui"
)

var (
	reextract bool
	dryRun    bool
	statsJSON bool
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Repair the stored travel data",
	Long: `Repair the stored travel-data document without fetching anything.

Cleaning:
  - merges country keys that name the same country (Holland and Netherlands)
  - folds regions into their country (Toscana into Italy)
  - deletes keys that never name a place (Life, Tomorrowland)
  - drops duplicate posts

With --reextract every caption is located again with the current tables,
moving posts that were filed under the wrong country. The previous document
is always backed up before it is replaced.`,
	Example: `  # Show what would change
  travelmap clean --dry-run

  # Clean and re-locate every post
  travelmap clean --reextract`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report on the quality of the stored travel data",
	Long: `Report posts per country, countries without map coordinates, country keys
that are not canonical, and posts that have no location.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statsCmd)

	cleanCmd.Flags().BoolVar(&reextract, "reextract", false, "locate every caption again")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the report as JSON")
}

// newOfflinePipeline builds a pipeline for commands that only touch the
// stored documents
func newOfflinePipeline() (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	aggregator, err := newAggregator(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, store, aggregator), nil
}

func runClean(cmd *cobra.Command, args []string) error {
	p, err := newOfflinePipeline()
	if err != nil {
		return err
	}

	report, err := p.Clean(travel.CleanOptions{Reextract: reextract}, dryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.PrintInfo("Countries", fmt.Sprintf("%d -> %d", report.CountriesBefore, report.CountriesAfter))
	for _, from := range sortedKeys(report.Merged) {
		fmt.Fprintf(out, "  merged   %-20s -> %s\n", from, report.Merged[from])
	}
	for _, key := range sortedKeys(report.Removed) {
		fmt.Fprintf(out, "  removed  %-20s (%d posts)\n", key, report.Removed[key])
	}
	if report.DuplicatesRemoved > 0 {
		ui.PrintInfo("Duplicates removed", fmt.Sprint(report.DuplicatesRemoved))
	}
	if reextract {
		ui.PrintInfo("Posts reassigned", fmt.Sprint(report.Reassigned))
	}

	switch {
	case dryRun:
		ui.PrintWarning("Dry run, nothing written")
	case !report.Changed():
		ui.PrintSuccess("Travel data was already clean")
	default:
		ui.PrintInfo("Backup", report.Backup)
		ui.PrintSuccess("Travel data cleaned")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	p, err := newOfflinePipeline()
	if err != nil {
		return err
	}
	report, err := p.Stats()
	if err != nil {
		return err
	}

	if statsJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Travel data quality")
	ui.PrintInfo("Posts located", fmt.Sprintf("%d of %d (%.1f%%)", report.PostsWithLocation, report.TotalPosts, report.Coverage*100))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%-24s %6s %7s  %s\n", "COUNTRY", "POSTS", "CITIES", "NOTES")
	for _, c := range report.Countries {
		var notes []string
		if !c.HasCoordinates {
			notes = append(notes, ui.Yellow("no coordinates"))
		}
		if !c.Canonical {
			notes = append(notes, ui.Red("not canonical"))
		}
		fmt.Fprintf(out, "%-24s %6d %7d  %s\n", c.Name, c.Posts, c.Cities, strings.Join(notes, ", "))
	}
	fmt.Fprintln(out)

	if len(report.NonCanonicalKeys) > 0 {
		ui.PrintWarning("Run 'travelmap clean' to fix", strings.Join(report.NonCanonicalKeys, ", "))
	}
	if len(report.TableGaps) > 0 {
		ui.PrintInfo("Countries without a centroid", fmt.Sprint(len(report.TableGaps)))
		fmt.Fprintln(out, ui.Dim("  "+strings.Join(report.TableGaps, ", ")))
	}
	if len(report.UnlocatedPosts) > 0 {
		ui.PrintInfo("Posts without a location", fmt.Sprint(len(report.UnlocatedPosts)))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
