// Package mentor models one learner's progress through the guided flow:
// skill assessment, learning roadmap, enumeration coaching, report writing.
// Each stage is unlocked by completing the previous one; the only way back
// is a full reset.
package mentor

import (
	"fmt"
	"strings"

	"offsecmentor/internal/governor"
	"offsecmentor/pkg/domain"
)

// Stage is the session's position in the guided flow. Values are ordered:
// a session only ever moves forward, or returns to StageAssessmentNotStarted
// via Reset.
type Stage int

const (
	StageUnauthenticated Stage = iota
	StageAssessmentNotStarted
	StageAssessmentInProgress
	StageAssessmentComplete
	StageRoadmapAvailable
	StageEnumerationAvailable
	StageReportAvailable
)

var stageNames = map[Stage]string{
	StageUnauthenticated:      "unauthenticated",
	StageAssessmentNotStarted: "assessment_not_started",
	StageAssessmentInProgress: "assessment_in_progress",
	StageAssessmentComplete:   "assessment_complete",
	StageRoadmapAvailable:     "roadmap_available",
	StageEnumerationAvailable: "enumeration_available",
	StageReportAvailable:      "report_available",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError reports an action attempted outside the stage that permits it.
type StageError struct {
	Action string
	Stage  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s not available in stage %s", e.Action, e.Stage)
}

// Session is the per-login progress state threaded through every action.
// It is ephemeral: created at login, discarded at logout. Durable artifacts
// live in the store; Artifacts here is only the session-local cache that is
// surfaced to the user.
type Session struct {
	UserID    string
	Stage     Stage
	Mode      domain.Mode
	Index     int
	Answers   []string
	Artifacts map[domain.ArtifactStage]string
	Usage     governor.State
}

// NewSession creates the post-login session state.
func NewSession(userID string) *Session {
	return &Session{
		UserID:    userID,
		Stage:     StageAssessmentNotStarted,
		Mode:      domain.ModeBeginner,
		Artifacts: make(map[domain.ArtifactStage]string),
	}
}

// StartAssessment moves into the question flow, clearing any earlier answers.
func (s *Session) StartAssessment() error {
	if s.Stage != StageAssessmentNotStarted {
		return &StageError{Action: "start assessment", Stage: s.Stage}
	}
	s.Stage = StageAssessmentInProgress
	s.Index = 0
	s.Answers = make([]string, 0, len(Questions))
	return nil
}

// CurrentQuestion returns the question at the session's index.
func (s *Session) CurrentQuestion() (domain.Question, error) {
	if s.Stage != StageAssessmentInProgress {
		return domain.Question{}, &StageError{Action: "current question", Stage: s.Stage}
	}
	if s.Index >= len(Questions) {
		return domain.Question{}, ErrOutOfRange
	}
	return Questions[s.Index], nil
}

// RecordAnswer stores the answer at the current index. It returns true when
// the final question has just been answered; the caller then runs the
// assessment generation and commits via CompleteAssessment. An empty answer
// is rejected without touching answers or index.
func (s *Session) RecordAnswer(text string) (final bool, err error) {
	if s.Stage != StageAssessmentInProgress {
		return false, &StageError{Action: "submit answer", Stage: s.Stage}
	}
	if strings.TrimSpace(text) == "" {
		return false, ErrEmptyInput
	}
	if s.Index >= len(Questions) {
		return false, ErrOutOfRange
	}
	if s.Index < len(s.Answers) {
		s.Answers[s.Index] = text
	} else {
		s.Answers = append(s.Answers, text)
	}
	if s.Index == len(Questions)-1 {
		return true, nil
	}
	s.Index++
	return false, nil
}

// NavigatePrevious steps back one question without altering stored answers.
func (s *Session) NavigatePrevious() error {
	if s.Stage != StageAssessmentInProgress {
		return &StageError{Action: "navigate previous", Stage: s.Stage}
	}
	if s.Index == 0 {
		return ErrOutOfRange
	}
	s.Index--
	return nil
}

// CompleteAssessment commits a successful assessment generation.
func (s *Session) CompleteAssessment(result string) error {
	if s.Stage != StageAssessmentInProgress {
		return &StageError{Action: "complete assessment", Stage: s.Stage}
	}
	if len(s.Answers) < len(Questions) {
		return fmt.Errorf("assessment incomplete: %d of %d answers", len(s.Answers), len(Questions))
	}
	s.Artifacts[domain.StageAssessment] = result
	s.Stage = StageAssessmentComplete
	return nil
}

// GuardRoadmap checks that roadmap generation is unlocked.
func (s *Session) GuardRoadmap() error {
	if s.Stage < StageAssessmentComplete {
		return &StageError{Action: "generate roadmap", Stage: s.Stage}
	}
	return nil
}

// CompleteRoadmap commits a successful roadmap generation. Regeneration from
// a later stage overwrites the cached roadmap without moving the stage.
func (s *Session) CompleteRoadmap(result string) error {
	if err := s.GuardRoadmap(); err != nil {
		return err
	}
	s.Artifacts[domain.StageRoadmap] = result
	if s.Stage == StageAssessmentComplete {
		s.Stage = StageRoadmapAvailable
	}
	return nil
}

// GuardEnumeration checks that enumeration coaching is unlocked and that the
// scan text is present.
func (s *Session) GuardEnumeration(scan string) error {
	if s.Stage < StageRoadmapAvailable {
		return &StageError{Action: "analyze enumeration", Stage: s.Stage}
	}
	if strings.TrimSpace(scan) == "" {
		return ErrEmptyInput
	}
	return nil
}

// CompleteEnumeration commits a successful enumeration analysis.
func (s *Session) CompleteEnumeration(result string) error {
	if s.Stage < StageRoadmapAvailable {
		return &StageError{Action: "analyze enumeration", Stage: s.Stage}
	}
	s.Artifacts[domain.StageEnumeration] = result
	if s.Stage == StageRoadmapAvailable {
		s.Stage = StageEnumerationAvailable
	}
	return nil
}

// GuardReport checks that report writing is unlocked and findings are present.
func (s *Session) GuardReport(findings string) error {
	if s.Stage < StageEnumerationAvailable {
		return &StageError{Action: "write report", Stage: s.Stage}
	}
	if strings.TrimSpace(findings) == "" {
		return ErrEmptyInput
	}
	return nil
}

// CompleteReport commits a successful report generation. Report output is
// cached on the session only; it is never persisted.
func (s *Session) CompleteReport(result string) error {
	if s.Stage < StageEnumerationAvailable {
		return &StageError{Action: "write report", Stage: s.Stage}
	}
	s.Artifacts[domain.StageReport] = result
	if s.Stage == StageEnumerationAvailable {
		s.Stage = StageReportAvailable
	}
	return nil
}

// Reset returns the session to the pre-assessment state: answers, cached
// artifacts, and call counters are cleared. Durable artifacts in the store
// are untouched.
func (s *Session) Reset() {
	s.Stage = StageAssessmentNotStarted
	s.Index = 0
	s.Answers = nil
	s.Artifacts = make(map[domain.ArtifactStage]string)
	s.Usage = governor.State{}
}
