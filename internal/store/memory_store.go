package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"offsecmentor/pkg/domain"
)

// MemoryStore keeps users and artifacts in-process. It implements both Store
// and SessionStore and is used by tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User // key: user ID
	usernames map[string]string      // username -> user ID
	artifacts map[domain.ArtifactStage][]domain.Artifact
	sess      map[string]string // token -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
		artifacts: make(map[domain.ArtifactStage][]domain.Artifact),
		sess:      make(map[string]string),
	}
}

// SaveUser registers a user, rejecting duplicate usernames.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[u.Username]; taken {
		return ErrDuplicateUsername
	}
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return nil
}

// HasUsername checks whether a username exists.
func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.usernames[username]
	return ok, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.usernames[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// AppendArtifact records a generation result. Append-only.
func (m *MemoryStore) AppendArtifact(userID string, stage domain.ArtifactStage, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	artifact := domain.Artifact{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     stage,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.artifacts[stage] = append(m.artifacts[stage], artifact)
	return artifact.ID, nil
}

// LatestArtifact returns the most recently appended artifact for the user.
func (m *MemoryStore) LatestArtifact(userID string, stage domain.ArtifactStage) (domain.Artifact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.artifacts[stage]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].UserID == userID {
			return rows[i], true, nil
		}
	}
	return domain.Artifact{}, false, nil
}

// ArtifactCount reports stored artifacts for a user and stage (test helper).
func (m *MemoryStore) ArtifactCount(userID string, stage domain.ArtifactStage) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.artifacts[stage] {
		if a.UserID == userID {
			count++
		}
	}
	return count
}

// NewSession creates a session token for a user.
func (m *MemoryStore) NewSession(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()
	m.sess[token] = userID
	return token, nil
}

// GetUserIDByToken resolves a token to the user ID it was issued for.
func (m *MemoryStore) GetUserIDByToken(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.sess[token]
	return uid, ok, nil
}

// DeleteSession removes a token mapping.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}
