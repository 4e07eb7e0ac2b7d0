package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"travelmap/pkg/instagram"
	"travelmap/pkg/logger"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint is the state of an interrupted media fetch
type Checkpoint struct {
	Username          string            `json:"username"`
	UserID            string            `json:"user_id"`
	MediaCount        int               `json:"media_count"`
	LastProcessedPage int               `json:"last_processed_page"`
	NextURL           string            `json:"next_url"`
	Media             []instagram.Media `json:"media"`
	Complete          bool              `json:"complete"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Version           int               `json:"version"`

	seen map[string]struct{}
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager for an account. Checkpoints live
// in dir, or in the per-user data directory when dir is empty.
func NewManager(dir, account string) (*Manager, error) {
	if dir == "" {
		dataDir, err := DefaultDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if account == "" {
		account = "me"
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", account)),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(username, userID string, mediaCount int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Username:   username,
		UserID:     userID,
		MediaCount: mediaCount,
		Media:      []instagram.Media{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"username": username,
		"path":     m.checkpointPath,
	})
	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when there is none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"username":   checkpoint.Username,
		"fetched":    len(checkpoint.Media),
		"last_page":  checkpoint.LastProcessedPage,
		"complete":   checkpoint.Complete,
		"updated_at": checkpoint.UpdatedAt,
	})
	return &checkpoint, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"username":  checkpoint.Username,
		"fetched":   len(checkpoint.Media),
		"last_page": checkpoint.LastProcessedPage,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordPage appends the new posts of a page, remembers where the next
// page starts and saves. Posts already recorded are skipped. The next URL
// is stored without its access token.
func (m *Manager) RecordPage(checkpoint *Checkpoint, pageNum int, media []instagram.Media, next string) error {
	for _, item := range media {
		if checkpoint.HasMedia(item.ID) {
			continue
		}
		checkpoint.Media = append(checkpoint.Media, item)
		checkpoint.seen[item.ID] = struct{}{}
	}
	checkpoint.LastProcessedPage = pageNum
	checkpoint.NextURL = instagram.StripToken(next)
	checkpoint.Complete = next == ""
	return m.Save(checkpoint)
}

// HasMedia reports whether a post was already fetched
func (checkpoint *Checkpoint) HasMedia(id string) bool {
	if checkpoint.seen == nil {
		checkpoint.seen = make(map[string]struct{}, len(checkpoint.Media))
		for _, item := range checkpoint.Media {
			checkpoint.seen[item.ID] = struct{}{}
		}
	}
	_, exists := checkpoint.seen[id]
	return exists
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"username":   checkpoint.Username,
		"fetched":    len(checkpoint.Media),
		"last_page":  checkpoint.LastProcessedPage,
		"complete":   checkpoint.Complete,
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint to a .backup sibling
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(m.checkpointPath + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// DefaultDirectory returns the per-user data directory for the current OS
func DefaultDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "travelmap")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "travelmap")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "travelmap")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "travelmap")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
