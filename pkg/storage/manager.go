package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"travelmap/pkg/errors"
	"travelmap/pkg/logger"
)

const (
	lockFileName    = ".travelmap.lock"
	backupTimestamp = "20060102-150405"
)

// Manager reads and writes the JSON documents of a data directory
type Manager struct {
	dataDir string
	lock    *flock.Flock
	logger  logger.Logger
	mu      sync.Mutex
	now     func() time.Time
}

// NewManager creates a storage manager, creating dataDir if needed
func NewManager(dataDir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to create data directory %s", dataDir)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		dataDir: dataDir,
		lock:    flock.New(filepath.Join(dataDir, lockFileName)),
		logger:  log,
		now:     time.Now,
	}, nil
}

// GetDataDir returns the data directory path
func (m *Manager) GetDataDir() string {
	return m.dataDir
}

// Path returns the full path of a document
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dataDir, name)
}

// Exists reports whether a document exists
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Lock takes the cross-process lock on the data directory. It fails
// immediately when another process holds it.
func (m *Manager) Lock() (func() error, error) {
	locked, err := m.lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "acquiring data lock")
	}
	if !locked {
		return nil, errors.New(errors.ErrorTypeStorage, "another travelmap process is writing "+m.dataDir)
	}
	return m.lock.Unlock, nil
}

// ReadJSON decodes the named document into v. A missing document is a
// not_found error.
func (m *Manager) ReadJSON(name string, v interface{}) error {
	path := m.Path(name)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &errors.Error{Type: errors.ErrorTypeNotFound, Message: "no such document: " + path, Err: err}
		}
		return errors.Wrap(errors.ErrorTypeStorage, err, "failed to read %s", path)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return errors.Wrap(errors.ErrorTypeParsing, err, "failed to parse %s", path)
	}
	return nil
}

// WriteJSON encodes v with two-space indentation and atomically replaces
// the named document
func (m *Manager) WriteJSON(name string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, err, "failed to encode %s", name)
	}
	content = append(content, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()

	filename := m.Path(name)
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, content, 0644); err != nil {
		os.Remove(tempFile)
		return errors.Wrap(errors.ErrorTypeStorage, err, "failed to write %s", tempFile)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return errors.Wrap(errors.ErrorTypeStorage, err, "failed to rename temporary file for %s", filename)
	}

	m.logger.DebugWithFields("wrote document", map[string]interface{}{
		"path":  filename,
		"bytes": len(content),
	})
	return nil
}

// BackupName returns the backup file name for a document at the given time,
// e.g. travel-data-backup-20240102-150405.json
func BackupName(name string, at time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-backup-%s%s", base, at.Format(backupTimestamp), ext)
}

// Backup copies the named document to a timestamped sibling and returns the
// backup path. It returns "" without error when the document does not exist.
func (m *Manager) Backup(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := os.Open(m.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to open %s for backup", name)
	}
	defer src.Close()

	backupPath := m.Path(BackupName(name, m.now()))
	tempFile := backupPath + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to create backup file")
	}

	_, err = io.Copy(out, src)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to copy backup data")
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, closeErr, "failed to close backup file")
	}
	if err := os.Rename(tempFile, backupPath); err != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to rename backup file")
	}

	m.logger.InfoWithFields("backed up document", map[string]interface{}{
		"source": name,
		"backup": backupPath,
	})
	return backupPath, nil
}

// Backups lists the backups of a document, oldest first
func (m *Manager) Backups(name string) ([]string, error) {
	ext := filepath.Ext(name)
	pattern := strings.TrimSuffix(name, ext) + "-backup-*" + ext
	matches, err := filepath.Glob(filepath.Join(m.dataDir, pattern))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to list backups")
	}
	sort.Strings(matches)
	return matches, nil
}

// PruneBackups removes all but the newest keep backups of a document
func (m *Manager) PruneBackups(name string, keep int) (int, error) {
	backups, err := m.Backups(name)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, path := range backups[:len(backups)-keep] {
		if err := os.Remove(path); err != nil {
			return removed, errors.Wrap(errors.ErrorTypeStorage, err, "failed to remove backup %s", path)
		}
		removed++
	}
	return removed, nil
}
