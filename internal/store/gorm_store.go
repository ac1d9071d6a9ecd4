package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"offsecmentor/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&userModel{}, &assessmentModel{}, &roadmapModel{}, &enumerationModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser inserts a new user. The unique index on username backs up the
// app-level duplicate check.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// HasUsername checks whether a username exists.
func (s *GormStore) HasUsername(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&userModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model userModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model userModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// AppendArtifact inserts a generation result into the stage's table.
// Rows are immutable; nothing is ever updated in place.
func (s *GormStore) AppendArtifact(userID string, stage domain.ArtifactStage, content string) (string, error) {
	row := artifactModel{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	var err error
	switch stage {
	case domain.StageAssessment:
		err = s.db.Create(&assessmentModel{artifactModel: row}).Error
	case domain.StageRoadmap:
		err = s.db.Create(&roadmapModel{artifactModel: row}).Error
	case domain.StageEnumeration:
		err = s.db.Create(&enumerationModel{artifactModel: row}).Error
	default:
		return "", fmt.Errorf("stage %q is not persisted", stage)
	}
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// LatestArtifact returns the most recent artifact for the user and stage.
func (s *GormStore) LatestArtifact(userID string, stage domain.ArtifactStage) (domain.Artifact, bool, error) {
	var row artifactModel
	var err error
	switch stage {
	case domain.StageAssessment:
		var m assessmentModel
		err = s.latest(&m, userID)
		row = m.artifactModel
	case domain.StageRoadmap:
		var m roadmapModel
		err = s.latest(&m, userID)
		row = m.artifactModel
	case domain.StageEnumeration:
		var m enumerationModel
		err = s.latest(&m, userID)
		row = m.artifactModel
	default:
		return domain.Artifact{}, false, fmt.Errorf("stage %q is not persisted", stage)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Artifact{}, false, nil
		}
		return domain.Artifact{}, false, err
	}
	return domain.Artifact{
		ID:        row.ID,
		UserID:    row.UserID,
		Stage:     stage,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}, true, nil
}

func (s *GormStore) latest(dst any, userID string) error {
	return s.db.Where("user_id = ?", userID).Order("created_at DESC").First(dst).Error
}

func userFromModel(m userModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}
