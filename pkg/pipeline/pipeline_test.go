package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/checkpoint"
	"travelmap/pkg/config"
	"travelmap/pkg/instagram"
	"travelmap/pkg/location"
	"travelmap/pkg/logger"
	"travelmap/pkg/storage"
	"travelmap/pkg/travel"
)

const testToken = "tok-123"

// fakeGraph serves a profile and a fixed sequence of media pages
type fakeGraph struct {
	srv   *httptest.Server
	pages [][]instagram.Media

	mu          sync.Mutex
	mediaTokens []string
	failProfile bool
}

func newFakeGraph(t *testing.T, pages ...[]instagram.Media) *fakeGraph {
	t.Helper()
	g := &fakeGraph{pages: pages}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	g.mu.Lock()
	defer g.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/media") {
		if g.failProfile {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		total := 0
		for _, p := range g.pages {
			total += len(p)
		}
		_ = json.NewEncoder(w).Encode(instagram.Profile{ID: "17841", Username: "wanderer", MediaCount: total})
		return
	}

	g.mediaTokens = append(g.mediaTokens, r.URL.Query().Get("access_token"))
	idx := 0
	if after := r.URL.Query().Get("after"); after != "" {
		idx, _ = strconv.Atoi(strings.TrimPrefix(after, "p"))
	}
	page := instagram.MediaPage{Data: g.pages[idx]}
	if idx+1 < len(g.pages) {
		page.Paging.Next = fmt.Sprintf("%s/v18.0/17841/media?after=p%d&access_token=%s", g.srv.URL, idx+1, testToken)
	}
	_ = json.NewEncoder(w).Encode(page)
}

func (g *fakeGraph) tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.mediaTokens...)
}

func captioned(id, caption string) instagram.Media {
	return instagram.Media{ID: id, Caption: &caption, MediaType: "IMAGE"}
}

type fixture struct {
	pipeline *Pipeline
	store    *storage.Manager
	cps      *checkpoint.Manager
	cfg      *config.Config
}

func newFixture(t *testing.T, graphURL string) *fixture {
	t.Helper()
	nop := logger.NewNopLogger()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Instagram.BaseURL = graphURL
	cfg.Instagram.AccessToken = testToken
	cfg.Output.DataDirectory = dir
	cfg.Extraction.Workers = 2

	client := instagram.NewClient(cfg.Instagram, instagram.WithLogger(nop), instagram.WithPageDelay(0))
	store, err := storage.NewManager(dir, nop)
	require.NoError(t, err)
	cps, err := checkpoint.NewManager(filepath.Join(dir, "checkpoints"), "me")
	require.NoError(t, err)

	extractor, err := location.NewDefault(location.WithLogger(nop))
	require.NoError(t, err)
	agg := travel.NewAggregator(location.NewCached(extractor, 0), extractor.Tables(), travel.WithAggregatorLogger(nop))

	p := New(cfg, store, agg, WithSource(client), WithCheckpoints(cps), WithLogger(nop))
	return &fixture{pipeline: p, store: store, cps: cps, cfg: cfg}
}

func threePages() [][]instagram.Media {
	return [][]instagram.Media{
		{captioned("1", "Japan • Tokyo\n日本 • 東京"), captioned("2", "Holland • Amsterdam")},
		{captioned("3", "just a sunset"), captioned("4", "Japan • Kyoto")},
		{captioned("5", "Mexico • Guanajuato")},
	}
}

func TestFetchWritesDocuments(t *testing.T) {
	graph := newFakeGraph(t, threePages()...)
	f := newFixture(t, graph.srv.URL)

	report, err := f.pipeline.Fetch(context.Background(), FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Fetched)
	assert.False(t, report.Partial)
	assert.False(t, report.Resumed)
	assert.Empty(t, report.Backup, "nothing to back up on the first run")
	require.Len(t, report.Result.Unlocated, 1)
	assert.Equal(t, "3", report.Result.Unlocated[0].ID)

	var data travel.Data
	require.NoError(t, f.store.ReadJSON(f.cfg.Output.DataFile, &data))
	assert.ElementsMatch(t, []string{"Japan", "Netherlands", "Mexico"}, mapKeys(data.Countries))
	assert.Equal(t, 5, data.TotalPosts)
	assert.Equal(t, 4, data.PostsWithLocation)

	var summary travel.Summary
	require.NoError(t, f.store.ReadJSON(f.cfg.Output.SummaryFile, &summary))
	assert.Equal(t, "wanderer", summary.Username)
	assert.Equal(t, 3, summary.TotalCountries)
	assert.Equal(t, 4, summary.TotalCities)

	assert.True(t, f.store.Exists(f.cfg.Output.ProfileFile))
	assert.False(t, f.cps.Exists(), "checkpoint removed after a complete fetch")

	second, err := f.pipeline.Fetch(context.Background(), FetchOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, second.Backup)
	assert.FileExists(t, second.Backup)
}

func TestFetchResume(t *testing.T) {
	graph := newFakeGraph(t, threePages()...)
	f := newFixture(t, graph.srv.URL)
	ctx := context.Background()

	first, err := f.pipeline.Fetch(ctx, FetchOptions{MaxPages: 1})
	require.NoError(t, err)
	assert.True(t, first.Partial)
	assert.Equal(t, 2, first.Fetched)
	assert.False(t, f.store.Exists(f.cfg.Output.DataFile), "partial fetch writes nothing")
	require.True(t, f.cps.Exists())

	raw, err := os.ReadFile(f.cps.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testToken)

	_, err = f.pipeline.Fetch(ctx, FetchOptions{})
	assert.ErrorIs(t, err, ErrCheckpointExists)

	resumed, err := f.pipeline.Fetch(ctx, FetchOptions{Resume: true})
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, 5, resumed.Fetched)
	assert.Equal(t, 4, resumed.Summary.PostsWithLocation)
	assert.False(t, f.cps.Exists())

	for _, tok := range graph.tokens() {
		assert.Equal(t, testToken, tok)
	}
}

func TestFetchForceRestart(t *testing.T) {
	graph := newFakeGraph(t, threePages()...)
	f := newFixture(t, graph.srv.URL)
	ctx := context.Background()

	_, err := f.pipeline.Fetch(ctx, FetchOptions{MaxPages: 2})
	require.NoError(t, err)
	require.True(t, f.cps.Exists())

	report, err := f.pipeline.Fetch(ctx, FetchOptions{ForceRestart: true})
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.Equal(t, 5, report.Fetched)
}

func TestFetchProfileFailure(t *testing.T) {
	graph := newFakeGraph(t, threePages()...)
	graph.failProfile = true
	f := newFixture(t, graph.srv.URL)

	_, err := f.pipeline.Fetch(context.Background(), FetchOptions{})
	require.Error(t, err)
	assert.False(t, f.store.Exists(f.cfg.Output.DataFile))
}

func TestFetchRequiresSource(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	p := New(f.cfg, f.store, f.pipeline.aggregator)

	_, err := p.Fetch(context.Background(), FetchOptions{})
	assert.Error(t, err)
}

func storedData() *travel.Data {
	amsterdam := travel.Post{ID: "a", Caption: "Holland • Amsterdam", Location: &location.Location{City: "Amsterdam", Country: "Holland"}}
	utrecht := travel.Post{ID: "b", Caption: "Netherlands • Utrecht", Location: &location.Location{City: "Utrecht", Country: "Netherlands"}}
	junk := travel.Post{ID: "c", Caption: "Life", Location: &location.Location{Country: "Life"}}
	return &travel.Data{
		Countries: map[string]*travel.Country{
			"Holland":     {Name: "Holland", Posts: []travel.Post{amsterdam}},
			"Netherlands": {Name: "Netherlands", Posts: []travel.Post{utrecht}},
			"Life":        {Name: "Life", Posts: []travel.Post{junk}},
		},
		Posts:      []travel.Post{amsterdam, utrecht, junk},
		TotalPosts: 3,
	}
}

func TestClean(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	require.NoError(t, f.store.WriteJSON(f.cfg.Output.DataFile, storedData()))
	require.NoError(t, f.store.WriteJSON(f.cfg.Output.SummaryFile, travel.Summary{Username: "wanderer", MediaCount: 3}))

	before, err := os.ReadFile(f.store.Path(f.cfg.Output.DataFile))
	require.NoError(t, err)

	dry, err := f.pipeline.Clean(travel.CleanOptions{}, true)
	require.NoError(t, err)
	assert.False(t, dry.Written)
	assert.Equal(t, 1, dry.CountriesAfter)
	after, err := os.ReadFile(f.store.Path(f.cfg.Output.DataFile))
	require.NoError(t, err)
	assert.Equal(t, before, after, "dry run leaves the document alone")

	report, err := f.pipeline.Clean(travel.CleanOptions{}, false)
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.FileExists(t, report.Backup)
	assert.Equal(t, map[string]int{"Life": 1}, report.Removed)

	data, err := f.pipeline.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Netherlands"}, mapKeys(data.Countries))
	assert.Len(t, data.Countries["Netherlands"].Posts, 2)

	var summary travel.Summary
	require.NoError(t, f.store.ReadJSON(f.cfg.Output.SummaryFile, &summary))
	assert.Equal(t, "wanderer", summary.Username, "profile fields survive a clean")
	assert.Equal(t, 1, summary.TotalCountries)
}

func TestStats(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")

	_, err := f.pipeline.Stats()
	require.Error(t, err)

	require.NoError(t, f.store.WriteJSON(f.cfg.Output.DataFile, storedData()))
	report, err := f.pipeline.Stats()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Holland", "Life"}, report.NonCanonicalKeys)
	assert.Len(t, report.Countries, 3)
}

func mapKeys(m map[string]*travel.Country) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
