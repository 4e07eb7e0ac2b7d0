package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"travelmap/pkg/location"
	"travelmap/pkg/patterns"
	"travelmap/pkg/ui"
)

var (
	explain    bool
	jsonOutput bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [caption]",
	Short: "Extract the location of a single caption",
	Long: `Extract the country and city of a caption and print it as JSON.

The caption is taken from the arguments, or from stdin when none are given.
A caption without a recognizable place prints null.`,
	Example: `  travelmap extract "Japan • Tokyo"
  echo "Lovely day in Kyoto" | travelmap extract
  travelmap extract --explain "Holland • Amsterdam"`,
	RunE: runExtract,
}

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [caption]",
	Short: "Show every pattern rule that matches a caption",
	Long: `Run every rule of the pattern catalog against a caption and report all
of them that match, not only the first. The result the extractor would
actually return is shown alongside.`,
	Example: `  travelmap diagnose "Paris, France"
  travelmap diagnose --json < caption.txt`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(diagnoseCmd)

	extractCmd.Flags().BoolVar(&explain, "explain", false, "include the matching stage and rule")
	diagnoseCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
}

// readCaption joins the arguments, or reads stdin when there are none
func readCaption(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read caption from stdin: %w", err)
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// explained adds the match provenance to a location
type explained struct {
	*location.Location
	Stage string `json:"stage"`
	Rule  string `json:"rule"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	caption, err := readCaption(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	loc := extractor.Extract(caption)
	if loc == nil || !explain {
		return writeJSON(cmd.OutOrStdout(), loc)
	}
	return writeJSON(cmd.OutOrStdout(), explained{Location: loc, Stage: loc.Stage.String(), Rule: loc.Rule})
}

// diagnosis is the report printed by diagnose
type diagnosis struct {
	Caption      string             `json:"caption"`
	FirstLine    string             `json:"firstLine"`
	LeadingLines string             `json:"leadingLines"`
	Hits         []patterns.Hit     `json:"hits"`
	Result       *location.Location `json:"result"`
	Stage        string             `json:"stage,omitempty"`
	Rule         string             `json:"rule,omitempty"`
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	caption, err := readCaption(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	d := diagnosis{Caption: caption, Hits: []patterns.Hit{}}
	first, leading, ok := location.SplitLines(caption)
	if ok {
		d.FirstLine, d.LeadingLines = first, leading
		if hits := extractor.Catalog().MatchAll(first, leading); hits != nil {
			d.Hits = hits
		}
	}
	if d.Result = extractor.Extract(caption); d.Result != nil {
		d.Stage = d.Result.Stage.String()
		d.Rule = d.Result.Rule
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), d)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Caption diagnosis")
	fmt.Fprintf(out, "First line:    %q\n", d.FirstLine)
	fmt.Fprintf(out, "Leading lines: %q\n\n", d.LeadingLines)

	if len(d.Hits) == 0 {
		ui.PrintWarning("No rule matched")
	}
	for i, hit := range d.Hits {
		fmt.Fprintf(out, "%2d. %-16s %-28s %s\n", i+1, hit.Stage, hit.Rule, ui.Dim(strings.Join(hit.Groups, " | ")))
	}
	fmt.Fprintln(out)

	if d.Result == nil {
		ui.PrintInfo("Result", "null")
		return nil
	}
	ui.PrintInfo("Result", fmt.Sprintf("%s / %s", d.Result.Country, orDash(d.Result.City)))
	ui.PrintInfo("Matched by", fmt.Sprintf("%s (%s)", d.Rule, d.Stage))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
