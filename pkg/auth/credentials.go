package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Token is a stored Instagram Graph API access token
type Token struct {
	Username     string    `json:"username"`
	UserID       string    `json:"user_id,omitempty"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Expired reports whether the token has a known expiry that has passed
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the given window.
// Tokens without a known expiry never do.
func (t *Token) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !t.ExpiresAt.IsZero() && now.Add(window).After(t.ExpiresAt)
}

// TokenStore is the interface for storing and retrieving tokens
type TokenStore interface {
	// Store saves the token for its account
	Store(token *Token) error

	// Retrieve gets the token for a specific username
	Retrieve(username string) (*Token, error)

	// List returns all stored tokens
	List() ([]*Token, error)

	// Delete removes the token for a specific username
	Delete(username string) error

	// Exists checks if a token exists for a username
	Exists(username string) bool
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a token manager backed by the system keychain when
// available, then an encrypted file in configDir, then the environment.
// An empty configDir selects the per-user config directory.
func NewManager(configDir string) (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the token using the first store that accepts it
func (m *Manager) Store(token *Token) error {
	if token == nil || token.Username == "" {
		return errors.New("username is required")
	}
	if token.AccessToken == "" {
		return errors.New("access token is required")
	}

	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return errors.New("no available token stores")
}

// Retrieve gets the token from the first store that has it
func (m *Manager) Retrieve(username string) (*Token, error) {
	for _, store := range m.stores {
		if token, err := store.Retrieve(username); err == nil && token != nil {
			return token, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrTokenNotFound, username)
}

// RetrieveDefault returns the environment token if set, otherwise the most
// recently stored token
func (m *Manager) RetrieveDefault() (*Token, error) {
	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if token, err := envStore.Retrieve(""); err == nil && token != nil {
				return token, nil
			}
		}
	}

	tokens, err := m.List()
	if err == nil && len(tokens) > 0 {
		return tokens[0], nil
	}

	return nil, ErrTokenNotFound
}

// List returns tokens from all stores, newest first, one per username
func (m *Manager) List() ([]*Token, error) {
	byUser := make(map[string]*Token)

	for _, store := range m.stores {
		tokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if existing, ok := byUser[token.Username]; !ok || token.LastModified.After(existing.LastModified) {
				byUser[token.Username] = token
			}
		}
	}

	result := make([]*Token, 0, len(byUser))
	for _, token := range byUser {
		result = append(result, token)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Username < result[j].Username
	})

	return result, nil
}

// Delete removes the token from all stores
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrTokenNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for user: %s", ErrTokenNotFound, username)
	}

	return nil
}

// DeleteAll removes all stored tokens
func (m *Manager) DeleteAll() error {
	tokens, err := m.List()
	if err != nil {
		return err
	}

	for _, token := range tokens {
		_ = m.Delete(token.Username)
	}

	return nil
}

// ConfigDir returns the per-user configuration directory, creating it if
// needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "travelmap")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "travelmap")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "travelmap")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "travelmap")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeToken creates a copy of the token with the secret masked
func SanitizeToken(token *Token) *Token {
	if token == nil {
		return nil
	}

	clean := *token
	clean.AccessToken = MaskString(token.AccessToken)
	return &clean
}

// MaskString masks all but the first 4 and last 4 characters of a string
func MaskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
