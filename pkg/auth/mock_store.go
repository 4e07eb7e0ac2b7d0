package auth

import "sync"

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	tokens map[string]*Token
	mu     sync.RWMutex

	// Error injection
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new in-memory token store
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]*Token)}
}

// Store saves a copy of the token
func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if token == nil || token.Username == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tok := *token
	m.tokens[token.Username] = &tok
	return nil
}

// Retrieve returns a copy of the stored token
func (m *MockStore) Retrieve(username string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if username == "" {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	token, exists := m.tokens[username]
	if !exists {
		return nil, ErrTokenNotFound
	}
	tok := *token
	return &tok, nil
}

// List returns copies of all stored tokens
func (m *MockStore) List() ([]*Token, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]*Token, 0, len(m.tokens))
	for _, token := range m.tokens {
		tok := *token
		tokens = append(tokens, &tok)
	}
	return tokens, nil
}

// Delete removes the token
func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if username == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[username]; !exists {
		return ErrTokenNotFound
	}
	delete(m.tokens, username)
	return nil
}

// Exists checks if a token is stored
func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.tokens[username]
	return exists
}

// Count returns the number of stored tokens
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tokens)
}

// NewMockManager creates a Manager over a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
