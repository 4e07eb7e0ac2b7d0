package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvAccessToken = "INSTAGRAM_ACCESS_TOKEN"
	EnvUserID      = "INSTAGRAM_USER_ID"
	EnvUsername    = "INSTAGRAM_USERNAME"
)

// EnvironmentStore implements TokenStore using environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Token) error {
	return ErrStoreUnavailable
}

// Retrieve builds a token from INSTAGRAM_ACCESS_TOKEN. The username is taken
// from INSTAGRAM_USERNAME, then the argument, then "default".
func (e *EnvironmentStore) Retrieve(username string) (*Token, error) {
	accessToken := os.Getenv(EnvAccessToken)
	if accessToken == "" {
		return nil, ErrTokenNotFound
	}

	envUser := os.Getenv(EnvUsername)
	switch {
	case username != "" && envUser != "" && username != envUser:
		return nil, ErrTokenNotFound
	case envUser != "":
		username = envUser
	case username == "":
		username = "default"
	}

	return &Token{
		Username:     username,
		UserID:       os.Getenv(EnvUserID),
		AccessToken:  accessToken,
		TokenType:    "bearer",
		LastModified: time.Now(),
	}, nil
}

// List returns a single token if the environment provides one
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve("")
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token exists
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
