package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/travel"
)

// run executes the CLI with fresh flag state and returns what it printed
func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRAVELMAP_LOG_LEVEL", "error")

	configFile, logLevel, dataDir, tablesFile = "", "", "", ""
	explain, jsonOutput, statsJSON, reextract, dryRun = false, false, false, false, false
	quiet = true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	out, err := run(t, nil, "extract", "Holland • Amsterdam\n荷蘭 • 阿姆斯特丹")
	require.NoError(t, err)

	var loc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &loc))
	assert.Equal(t, "Netherlands", loc["country"])
	assert.Equal(t, "Amsterdam", loc["city"])
	assert.NotNil(t, loc["countryCoordinates"])
	assert.NotContains(t, loc, "stage")
}

func TestExtractCommandNoMatch(t *testing.T) {
	out, err := run(t, nil, "extract", "這的理由還是沒有留在這的理由")
	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestExtractCommandStdin(t *testing.T) {
	out, err := run(t, strings.NewReader("Japan・Hokkaido\n日本・北海道\n"), "extract", "--explain")
	require.NoError(t, err)

	var loc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &loc))
	assert.Equal(t, "Japan", loc["country"])
	assert.Equal(t, "Hokkaido", loc["city"])
	assert.Equal(t, "bullet", loc["stage"])
	assert.NotEmpty(t, loc["rule"])
}

func TestDiagnoseCommand(t *testing.T) {
	out, err := run(t, nil, "diagnose", "--json", "Paris, France")
	require.NoError(t, err)

	var d diagnosis
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "Paris, France", d.FirstLine)
	assert.NotEmpty(t, d.Hits)
	require.NotNil(t, d.Result)
	assert.Equal(t, "France", d.Result.Country)
	assert.NotEmpty(t, d.Stage)
}

func TestStatsAndCleanCommands(t *testing.T) {
	dir := t.TempDir()
	doc := travel.Data{
		Countries: map[string]*travel.Country{
			"Holland": {Name: "Holland", Posts: []travel.Post{{ID: "1", Caption: "Holland • Amsterdam"}}, Cities: []string{"Amsterdam"}},
		},
		Posts:             []travel.Post{{ID: "1", Caption: "Holland • Amsterdam"}},
		TotalPosts:        1,
		PostsWithLocation: 1,
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	dataPath := filepath.Join(dir, "travel-data.json")
	require.NoError(t, os.WriteFile(dataPath, raw, 0644))

	out, err := run(t, nil, "stats", "--json", "--data-dir", dir)
	require.NoError(t, err)
	var report travel.QualityReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"Holland"}, report.NonCanonicalKeys)

	_, err = run(t, nil, "clean", "--dry-run", "--data-dir", dir)
	require.NoError(t, err)
	after, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	assert.Equal(t, raw, after)

	_, err = run(t, nil, "clean", "--data-dir", dir)
	require.NoError(t, err)
	out, err = run(t, nil, "stats", "--json", "--data-dir", dir)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.NonCanonicalKeys)
	require.Len(t, report.Countries, 1)
	assert.Equal(t, "Netherlands", report.Countries[0].Name)
}

func TestStatsWithoutData(t *testing.T) {
	_, err := run(t, nil, "stats", "--data-dir", t.TempDir())
	assert.Error(t, err)
}
