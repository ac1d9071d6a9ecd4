// Package store persists users and generated artifacts, and maps login
// tokens to user IDs.
package store

import (
	"errors"

	"offsecmentor/pkg/domain"
)

// ErrDuplicateUsername rejects a signup for a username already taken.
var ErrDuplicateUsername = errors.New("username already taken")

// Store defines persistence for users and artifacts. Artifacts are
// append-only: rows are never updated or deleted, history accumulates per
// user and stage.
type Store interface {
	SaveUser(domain.User) error
	HasUsername(username string) (bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	AppendArtifact(userID string, stage domain.ArtifactStage, content string) (string, error)
	LatestArtifact(userID string, stage domain.ArtifactStage) (domain.Artifact, bool, error)
}

// SessionStore persists login tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
