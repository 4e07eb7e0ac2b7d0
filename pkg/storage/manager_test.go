package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/errors"
	"travelmap/pkg/logger"
)

type document struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "data"), logger.NewNopLogger())
	require.NoError(t, err)
	return m
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	m := newTestManager(t)
	info, err := os.Stat(m.GetDataDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteAndReadJSON(t *testing.T) {
	m := newTestManager(t)

	in := document{Name: "Japan", Items: []string{"Tokyo", "Kyoto"}}
	require.NoError(t, m.WriteJSON("travel-data.json", in))
	assert.True(t, m.Exists("travel-data.json"))
	assert.NoFileExists(t, m.Path("travel-data.json.tmp"))

	raw, err := os.ReadFile(m.Path("travel-data.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"name\": \"Japan\"")

	var out document
	require.NoError(t, m.ReadJSON("travel-data.json", &out))
	assert.Equal(t, in, out)
}

func TestReadJSONErrors(t *testing.T) {
	m := newTestManager(t)

	var out document
	err := m.ReadJSON("missing.json", &out)
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))

	require.NoError(t, os.WriteFile(m.Path("broken.json"), []byte("{not json"), 0644))
	err = m.ReadJSON("broken.json", &out)
	assert.True(t, errors.Is(err, errors.ErrorTypeParsing))
}

func TestBackup(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC) }

	path, err := m.Backup("travel-data.json")
	require.NoError(t, err)
	assert.Empty(t, path, "nothing to back up yet")

	require.NoError(t, m.WriteJSON("travel-data.json", document{Name: "before"}))
	path, err = m.Backup("travel-data.json")
	require.NoError(t, err)
	assert.Equal(t, m.Path("travel-data-backup-20240309-150405.json"), path)

	require.NoError(t, m.WriteJSON("travel-data.json", document{Name: "after"}))

	var backup document
	require.NoError(t, m.ReadJSON(filepath.Base(path), &backup))
	assert.Equal(t, "before", backup.Name)
}

func TestBackupsAndPrune(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.WriteJSON("travel-data.json", document{}))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return at }
		_, err := m.Backup("travel-data.json")
		require.NoError(t, err)
	}

	backups, err := m.Backups("travel-data.json")
	require.NoError(t, err)
	require.Len(t, backups, 4)

	removed, err := m.PruneBackups("travel-data.json", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	backups, err = m.Backups("travel-data.json")
	require.NoError(t, err)
	assert.Equal(t, []string{
		m.Path(BackupName("travel-data.json", base.Add(2*time.Hour))),
		m.Path(BackupName("travel-data.json", base.Add(3*time.Hour))),
	}, backups)
}

func TestLockIsExclusive(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(m.GetDataDir(), logger.NewNopLogger())
	require.NoError(t, err)

	unlock, err := m.Lock()
	require.NoError(t, err)

	_, err = other.Lock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeStorage))

	require.NoError(t, unlock())

	unlockOther, err := other.Lock()
	require.NoError(t, err)
	require.NoError(t, unlockOther())
}

func TestBackupName(t *testing.T) {
	at := time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "summary-backup-20231231-235958.json", BackupName("summary.json", at))
	assert.Equal(t, "notes-backup-20231231-235958", BackupName("notes", at))
}
