// Package app is the application service: it wires authentication, the
// per-session progress state machine, the generation-call governor, prompt
// selection, and artifact persistence behind one synchronous API.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"offsecmentor/internal/governor"
	"offsecmentor/internal/mentor"
	"offsecmentor/internal/store"
	"offsecmentor/pkg/ai"
	"offsecmentor/pkg/auth"
	"offsecmentor/pkg/domain"
	"offsecmentor/pkg/prompt"

	"github.com/google/uuid"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	SessionBackend string
	SessionTTL     time.Duration
	JWTSecret      string
	MaxCalls       int
	Cooldown       time.Duration

	// Injection points for tests; defaults are built from the fields above.
	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
}

// App orchestrates every user-facing action. Each login session owns one
// mentor.Session; actions on it are serialized with a per-session lock held
// across the whole action, including its generation call.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	generator ai.TextGenerator
	governor  *governor.Governor

	mu     sync.Mutex
	active map[string]*sessionEntry // session token -> progress state
}

type sessionEntry struct {
	mu   sync.Mutex
	sess *mentor.Session
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Generator == nil {
		return nil, errors.New("text generator required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch cfg.SessionBackend {
		case "jwt":
			sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		case "redis", "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
		}
	}

	return &App{
		store:     dataStore,
		sessions:  sessionStore,
		generator: cfg.Generator,
		governor:  governor.New(cfg.MaxCalls, cfg.Cooldown),
		active:    make(map[string]*sessionEntry),
	}, nil
}

// SignUp registers a new user. It does not log the user in.
func (a *App) SignUp(username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return domain.User{}, errors.New("username and password required")
	}
	if len(password) < 8 {
		return domain.User{}, errors.New("password must be at least 8 characters")
	}
	taken, err := a.store.HasUsername(username)
	if err != nil {
		return domain.User{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.User{}, store.ErrDuplicateUsername
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials, issues a session token, and creates fresh
// progress state for it.
func (a *App) Login(username, password string) (string, domain.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return "", domain.User{}, ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("issue session: %w", err)
	}
	a.mu.Lock()
	a.active[token] = &sessionEntry{sess: mentor.NewSession(user.ID)}
	a.mu.Unlock()
	return token, user, nil
}

// Logout discards the session token and its progress state.
func (a *App) Logout(token string) error {
	a.mu.Lock()
	delete(a.active, token)
	a.mu.Unlock()
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// entryFor returns the progress state for a token, creating fresh state when
// the token is valid but unknown here (e.g. a Redis session surviving a
// process restart). Progress state is ephemeral; only artifacts are durable.
func (a *App) entryFor(token, userID string) *sessionEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.active[token]; ok {
		return e
	}
	e := &sessionEntry{sess: mentor.NewSession(userID)}
	a.active[token] = e
	return e
}

// SessionView is the session snapshot surfaced over the API.
type SessionView struct {
	Stage         string `json:"stage"`
	Mode          string `json:"mode"`
	QuestionIndex int    `json:"questionIndex"`
	QuestionCount int    `json:"questionCount"`
	CallsUsed     int    `json:"callsUsed"`
	MaxCalls      int    `json:"maxCalls"`
}

// QuestionView pairs a catalog question with its one-based position.
type QuestionView struct {
	Question domain.Question `json:"question"`
	Position int             `json:"position"`
	Total    int             `json:"total"`
}

// AnswerOutcome is the result of submitting an answer. After the final
// answer, Result carries the generated assessment (or the classified failure
// text) and Next is nil.
type AnswerOutcome struct {
	Final     bool          `json:"final"`
	Next      *QuestionView `json:"next,omitempty"`
	Result    string        `json:"result,omitempty"`
	Generated bool          `json:"generated"`
}

// GenerationOutcome is the result of a roadmap, enumeration, or report
// action. Generated is false when the provider call failed and Text carries
// the classified failure message instead.
type GenerationOutcome struct {
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

// Snapshot reports the session's stage, mode, and call usage.
func (a *App) Snapshot(token, userID string) SessionView {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return SessionView{
		Stage:         e.sess.Stage.String(),
		Mode:          string(e.sess.Mode),
		QuestionIndex: e.sess.Index,
		QuestionCount: len(mentor.Questions),
		CallsUsed:     e.sess.Usage.Calls,
		MaxCalls:      a.governor.MaxCalls(),
	}
}

// SetMode switches the learning mode for subsequent generations.
func (a *App) SetMode(token, userID, mode string) error {
	parsed, ok := domain.ParseMode(mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Mode = parsed
	return nil
}

// ResetProgress returns the session to the pre-assessment state. Durable
// artifacts are kept.
func (a *App) ResetProgress(token, userID string) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Reset()
}

// StartAssessment begins the question flow and returns the first question.
func (a *App) StartAssessment(token, userID string) (QuestionView, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sess.StartAssessment(); err != nil {
		return QuestionView{}, err
	}
	q, err := e.sess.CurrentQuestion()
	if err != nil {
		return QuestionView{}, err
	}
	return QuestionView{Question: q, Position: e.sess.Index + 1, Total: len(mentor.Questions)}, nil
}

// CurrentQuestion returns the question at the session's position.
func (a *App) CurrentQuestion(token, userID string) (QuestionView, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	q, err := e.sess.CurrentQuestion()
	if err != nil {
		return QuestionView{}, err
	}
	return QuestionView{Question: q, Position: e.sess.Index + 1, Total: len(mentor.Questions)}, nil
}

// NavigatePrevious steps back one question.
func (a *App) NavigatePrevious(token, userID string) (QuestionView, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sess.NavigatePrevious(); err != nil {
		return QuestionView{}, err
	}
	q, err := e.sess.CurrentQuestion()
	if err != nil {
		return QuestionView{}, err
	}
	return QuestionView{Question: q, Position: e.sess.Index + 1, Total: len(mentor.Questions)}, nil
}

// SubmitAnswer stores an answer. The final answer triggers the assessment
// generation; on success the result is persisted and the session advances.
// A provider failure surfaces as the result text with the session unchanged.
func (a *App) SubmitAnswer(ctx context.Context, token, userID, answer string) (AnswerOutcome, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	final, err := e.sess.RecordAnswer(answer)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if !final {
		q, err := e.sess.CurrentQuestion()
		if err != nil {
			return AnswerOutcome{}, err
		}
		return AnswerOutcome{
			Next: &QuestionView{Question: q, Position: e.sess.Index + 1, Total: len(mentor.Questions)},
		}, nil
	}

	text, generated, err := a.generate(ctx, e.sess, domain.StageAssessment, e.sess.Transcript())
	if err != nil {
		return AnswerOutcome{}, err
	}
	if !generated {
		return AnswerOutcome{Final: true, Result: text}, nil
	}
	if err := e.sess.CompleteAssessment(text); err != nil {
		return AnswerOutcome{}, err
	}
	if _, err := a.store.AppendArtifact(userID, domain.StageAssessment, text); err != nil {
		return AnswerOutcome{}, fmt.Errorf("persist assessment: %w", err)
	}
	return AnswerOutcome{Final: true, Result: text, Generated: true}, nil
}

// GenerateRoadmap builds a personalized roadmap from the assessment result.
// Invoking it again regenerates; the stage never moves backwards.
func (a *App) GenerateRoadmap(ctx context.Context, token, userID string) (GenerationOutcome, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sess.GuardRoadmap(); err != nil {
		return GenerationOutcome{}, err
	}
	userMessage := fmt.Sprintf(`Based on the following skill assessment results, please create a personalized learning roadmap:

%s

Please provide a structured roadmap that includes:
1. Phase-based learning path (Foundations -> Core Offensive Skills -> Intermediate Concepts)
2. Topics to study in each phase
3. Why each phase matters
4. Suggested practice platforms (high-level only)
5. OSCP alignment explanation

Format the roadmap clearly with phases and learning objectives.`, e.sess.Artifacts[domain.StageAssessment])

	text, generated, err := a.generate(ctx, e.sess, domain.StageRoadmap, userMessage)
	if err != nil || !generated {
		return GenerationOutcome{Text: text}, err
	}
	if err := e.sess.CompleteRoadmap(text); err != nil {
		return GenerationOutcome{}, err
	}
	if _, err := a.store.AppendArtifact(userID, domain.StageRoadmap, text); err != nil {
		return GenerationOutcome{}, fmt.Errorf("persist roadmap: %w", err)
	}
	return GenerationOutcome{Text: text, Generated: true}, nil
}

// AnalyzeEnumeration explains scan output from a methodology perspective.
func (a *App) AnalyzeEnumeration(ctx context.Context, token, userID, scan, extra string) (GenerationOutcome, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sess.GuardEnumeration(scan); err != nil {
		return GenerationOutcome{}, err
	}
	userMessage := fmt.Sprintf("Here are my scan results. Please help me understand them from a methodology perspective.\n\nScan Output:\n```\n%s\n```", scan)
	if strings.TrimSpace(extra) != "" {
		userMessage += fmt.Sprintf("\n\nAdditional Context: %s", extra)
	}
	userMessage += `

Please explain:
1. What these discovered services generally indicate about the system
2. What areas I should think about enumerating next (high-level only)
3. WHY those areas matter from a pentesting methodology perspective
4. The thinking process behind prioritizing enumeration steps

Remember: Focus on methodology and reasoning, not specific commands or exploits.`

	text, generated, err := a.generate(ctx, e.sess, domain.StageEnumeration, userMessage)
	if err != nil || !generated {
		return GenerationOutcome{Text: text}, err
	}
	if err := e.sess.CompleteEnumeration(text); err != nil {
		return GenerationOutcome{}, err
	}
	if _, err := a.store.AppendArtifact(userID, domain.StageEnumeration, text); err != nil {
		return GenerationOutcome{}, fmt.Errorf("persist enumeration: %w", err)
	}
	return GenerationOutcome{Text: text, Generated: true}, nil
}

// WriteReport turns raw findings into report-style writeups. The output is
// held on the session only; there is no report table.
func (a *App) WriteReport(ctx context.Context, token, userID, findings string) (GenerationOutcome, error) {
	e := a.entryFor(token, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sess.GuardReport(findings); err != nil {
		return GenerationOutcome{}, err
	}
	userMessage := fmt.Sprintf(`Here are my raw penetration test findings. Please help me turn them into professional report language.

Findings:
%s

Please produce, for each finding, a description, an impact explanation, and a remediation recommendation, written for a professional report audience.`, findings)

	text, generated, err := a.generate(ctx, e.sess, domain.StageReport, userMessage)
	if err != nil || !generated {
		return GenerationOutcome{Text: text}, err
	}
	if err := e.sess.CompleteReport(text); err != nil {
		return GenerationOutcome{}, err
	}
	return GenerationOutcome{Text: text, Generated: true}, nil
}

// LatestArtifact returns the most recent stored artifact for a stage.
func (a *App) LatestArtifact(userID string, stage domain.ArtifactStage) (domain.Artifact, bool, error) {
	return a.store.LatestArtifact(userID, stage)
}

// generate runs one governed generation call. The governor is consulted
// first; its denial propagates as an error (mapped to 429 upstream). A
// provider failure is classified into user-facing text and returned with
// generated=false: the session stays untouched and the call is not counted.
func (a *App) generate(ctx context.Context, sess *mentor.Session, stage domain.ArtifactStage, userMessage string) (string, bool, error) {
	if err := a.governor.Admit(sess.Usage); err != nil {
		return "", false, err
	}
	systemPrompt := prompt.Select(stage, sess.Mode)
	text, err := a.generator.GenerateText(ctx, systemPrompt, userMessage)
	if err != nil {
		return failureText(err), false, nil
	}
	a.governor.Record(&sess.Usage)
	return text, true, nil
}

// failureText maps a classified provider error to the message shown as the
// action's result.
func failureText(err error) string {
	var authErr *ai.AuthError
	var quotaErr *ai.QuotaError
	var permErr *ai.PermissionError
	switch {
	case errors.As(err, &authErr):
		return "Authentication error: the provider rejected the API key. Please contact the operator."
	case errors.As(err, &quotaErr):
		return "Rate limit: provider quota exceeded. Please try again later."
	case errors.As(err, &permErr):
		return "Permission denied: the provider refused this request. Please contact the operator."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
