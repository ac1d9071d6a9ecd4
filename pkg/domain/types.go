package domain

import "time"

// ArtifactStage tags a generated artifact with the learning stage that
// produced it. Report output is generated but never persisted, so only the
// first three stages ever appear in storage.
type ArtifactStage string

const (
	StageAssessment  ArtifactStage = "assessment"
	StageRoadmap     ArtifactStage = "roadmap"
	StageEnumeration ArtifactStage = "enumeration"
	StageReport      ArtifactStage = "report"
)

// Persisted reports whether artifacts of this stage are stored durably.
func (s ArtifactStage) Persisted() bool {
	return s == StageAssessment || s == StageRoadmap || s == StageEnumeration
}

// Valid reports whether s names a known stage.
func (s ArtifactStage) Valid() bool {
	switch s {
	case StageAssessment, StageRoadmap, StageEnumeration, StageReport:
		return true
	}
	return false
}

// Mode selects the coaching style appended to every system prompt.
type Mode string

const (
	ModeBeginner Mode = "beginner"
	ModeOSCP     Mode = "oscp"
	ModeRedTeam  Mode = "redteam"
)

// ParseMode maps a request value to a Mode, defaulting to beginner.
func ParseMode(v string) (Mode, bool) {
	switch Mode(v) {
	case ModeBeginner, ModeOSCP, ModeRedTeam:
		return Mode(v), true
	}
	return ModeBeginner, false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Artifact is one stored generation result. Artifacts are append-only and
// immutable; a user accumulates history per stage.
type Artifact struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Stage     ArtifactStage `json:"stage"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Question is one entry of the static skill-assessment catalog.
type Question struct {
	ID     int    `json:"id"`
	Prompt string `json:"prompt"`
	Hint   string `json:"hint"`
}
