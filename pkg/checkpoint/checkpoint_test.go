package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/instagram"
)

func media(ids ...string) []instagram.Media {
	out := make([]instagram.Media, 0, len(ids))
	for _, id := range ids {
		out = append(out, instagram.Media{ID: id, MediaType: "IMAGE"})
	}
	return out
}

func TestCheckpointManager(t *testing.T) {
	dir := t.TempDir()

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(dir, "wanderer")
		require.NoError(t, err)

		cp, err := mgr.Create("wanderer", "12345", 250)
		require.NoError(t, err)
		assert.Equal(t, "wanderer", cp.Username)
		assert.Equal(t, Version, cp.Version)

		loaded, err := mgr.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "12345", loaded.UserID)
		assert.Equal(t, 250, loaded.MediaCount)
		assert.Empty(t, loaded.Media)
	})

	t.Run("RecordPage", func(t *testing.T) {
		mgr, err := NewManager(dir, "pages")
		require.NoError(t, err)
		cp, err := mgr.Create("pages", "1", 3)
		require.NoError(t, err)

		next := "https://graph.instagram.com/v18.0/1/media?access_token=secret&after=c1"
		require.NoError(t, mgr.RecordPage(cp, 1, media("a", "b"), next))
		require.NoError(t, mgr.RecordPage(cp, 2, media("b", "c"), ""))

		loaded, err := mgr.Load()
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.LastProcessedPage)
		assert.True(t, loaded.Complete)
		assert.Equal(t, "", loaded.NextURL)
		require.Len(t, loaded.Media, 3)
		assert.True(t, loaded.HasMedia("c"))
		assert.False(t, loaded.HasMedia("z"))
	})

	t.Run("NextURLStoredWithoutToken", func(t *testing.T) {
		mgr, err := NewManager(dir, "token")
		require.NoError(t, err)
		cp, err := mgr.Create("token", "1", 0)
		require.NoError(t, err)

		require.NoError(t, mgr.RecordPage(cp, 1, media("x"),
			"https://graph.instagram.com/v18.0/1/media?access_token=secret&after=c1"))

		raw, err := os.ReadFile(mgr.Path())
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret")
		assert.Contains(t, cp.NextURL, "after=c1")
		assert.False(t, cp.Complete)
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(dir, "delete")
		require.NoError(t, err)
		_, err = mgr.Create("delete", "1", 0)
		require.NoError(t, err)

		assert.True(t, mgr.Exists())
		require.NoError(t, mgr.Delete())
		assert.False(t, mgr.Exists())

		loaded, err := mgr.Load()
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		mgr, err := NewManager(dir, "concurrent")
		require.NoError(t, err)
		cp, err := mgr.Create("concurrent", "1", 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = mgr.Save(cp)
			}()
		}
		wg.Wait()

		loaded, err := mgr.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded, "checkpoint corrupted after concurrent saves")
	})

	t.Run("BackupCheckpoint", func(t *testing.T) {
		mgr, err := NewManager(dir, "backup")
		require.NoError(t, err)
		_, err = mgr.Create("backup", "1", 42)
		require.NoError(t, err)

		require.NoError(t, mgr.BackupCheckpoint())
		assert.FileExists(t, mgr.Path()+".backup")
	})
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, "future")
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]interface{}{"username": "future", "version": Version + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Path(), raw, 0644))

	_, err = mgr.Load()
	assert.Error(t, err)
}

func TestGetCheckpointInfo(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "me.checkpoint.json", filepath.Base(mgr.Path()))

	info, err := mgr.GetCheckpointInfo()
	require.NoError(t, err)
	assert.Nil(t, info)

	cp, err := mgr.Create("me", "1", 10)
	require.NoError(t, err)
	require.NoError(t, mgr.RecordPage(cp, 1, media("a"), "https://x/next"))

	info, err = mgr.GetCheckpointInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info["fetched"])
	assert.Equal(t, false, info["complete"])
}

func TestDefaultDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	dir, err := DefaultDirectory()
	require.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.DirExists(t, dir)
}
