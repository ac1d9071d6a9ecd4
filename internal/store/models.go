package store

import "time"

// GORM models. Each artifact stage gets its own table so per-stage history
// stays cheap to query; all three share the artifactModel shape.

type userModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

type artifactModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type assessmentModel struct{ artifactModel }

func (assessmentModel) TableName() string { return "assessments" }

type roadmapModel struct{ artifactModel }

func (roadmapModel) TableName() string { return "roadmaps" }

type enumerationModel struct{ artifactModel }

func (enumerationModel) TableName() string { return "enumerations" }
