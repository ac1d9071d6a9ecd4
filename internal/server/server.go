// Package server exposes the JSON API over net/http.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offsecmentor/internal/app"
	"offsecmentor/internal/governor"
	"offsecmentor/internal/mentor"
	"offsecmentor/internal/ratelimit"
	"offsecmentor/internal/store"
	"offsecmentor/internal/util"
	"offsecmentor/pkg/domain"

	"github.com/redis/go-redis/v9"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	TrustedProxyCIDRs        []string
}

// Server exposes HTTP endpoints for the mentor API.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	trusted       *util.TrustedProxies
	signupLimiter *ratelimit.FixedWindowLimiter
	loginLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting on the
// auth endpoints is active only when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:     cfg.App,
		mux:     http.NewServeMux(),
		trusted: trusted,
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		signupLimit := cfg.SignupRateLimitPerMinute
		if signupLimit <= 0 {
			signupLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		s.signupLimiter, err = ratelimit.New(client, "mentor:ratelimit:signup", signupLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init signup limiter: %w", err)
		}
		s.loginLimiter, err = ratelimit.New(client, "mentor:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the shared middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("mentor", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// session state
	s.mux.Handle("/api/session", s.authenticated(s.handleSession))
	s.mux.Handle("/api/session/mode", s.authenticated(s.handleMode))
	s.mux.Handle("/api/session/reset", s.authenticated(s.handleReset))

	// assessment flow
	s.mux.Handle("/api/assessment/start", s.authenticated(s.handleAssessmentStart))
	s.mux.Handle("/api/assessment/question", s.authenticated(s.handleAssessmentQuestion))
	s.mux.Handle("/api/assessment/answer", s.authenticated(s.handleAssessmentAnswer))
	s.mux.Handle("/api/assessment/previous", s.authenticated(s.handleAssessmentPrevious))

	// guided generations
	s.mux.Handle("/api/roadmap", s.authenticated(s.handleRoadmap))
	s.mux.Handle("/api/enumeration", s.authenticated(s.handleEnumeration))
	s.mux.Handle("/api/report", s.authenticated(s.handleReport))

	// stored artifacts
	s.mux.Handle("/api/artifacts/", s.authenticated(s.handleArtifact))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrapper
type authHandler func(w http.ResponseWriter, r *http.Request, token string, user domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "mentor.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, "mentor.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, token, user)
	})
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type enumerationRequest struct {
	Scan    string `json:"scan"`
	Context string `json:"context,omitempty"`
}

type reportRequest struct {
	Findings string `json:"findings"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "mentor.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "mentor.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		s.audit(r, "mentor.signup", "fail", "reason", err.Error())
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit(r, "mentor.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "mentor.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "mentor.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, user, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		s.audit(r, "mentor.login", "fail", "reason", err.Error())
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.audit(r, "mentor.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "mentor.logout", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.audit(r, "mentor.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot(token, user.ID))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req modeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.SetMode(token, user.ID, req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.app.ResetProgress(token, user.ID)
	s.audit(r, "mentor.session.reset", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssessmentStart(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.StartAssessment(token, user.ID)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAssessmentQuestion(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.CurrentQuestion(token, user.ID)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAssessmentAnswer(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req answerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.app.SubmitAnswer(r.Context(), token, user.ID, req.Answer)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if out.Final {
		s.audit(r, "mentor.assessment.complete", outcomeOf(out.Generated), "user_id", user.ID)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssessmentPrevious(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.NavigatePrevious(token, user.ID)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	out, err := s.app.GenerateRoadmap(r.Context(), token, user.ID)
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.audit(r, "mentor.roadmap", outcomeOf(out.Generated), "user_id", user.ID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEnumeration(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req enumerationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.app.AnalyzeEnumeration(r.Context(), token, user.ID, req.Scan, req.Context)
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.audit(r, "mentor.enumeration", outcomeOf(out.Generated), "user_id", user.ID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := s.app.WriteReport(r.Context(), token, user.ID, req.Findings)
	if err != nil {
		writeActionError(w, err)
		return
	}
	s.audit(r, "mentor.report", outcomeOf(out.Generated), "user_id", user.ID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	stage := domain.ArtifactStage(strings.ToLower(strings.TrimSpace(name)))
	if !stage.Valid() {
		writeError(w, http.StatusBadRequest, "unknown artifact stage")
		return
	}
	if !stage.Persisted() {
		writeError(w, http.StatusBadRequest, "report artifacts are not stored")
		return
	}
	artifact, ok, err := s.app.LatestArtifact(user.ID, stage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch artifact failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no artifact stored for this stage")
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// writeActionError maps app-layer failures to HTTP statuses. Provider
// failures never reach here; they are surfaced as result text with 200.
func writeActionError(w http.ResponseWriter, err error) {
	var stageErr *mentor.StageError
	var denied *governor.DeniedError
	switch {
	case errors.As(err, &denied):
		if denied.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(denied.RetryAfterSeconds))
		}
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             denied.Reason,
			"retryAfterSeconds": denied.RetryAfterSeconds,
		})
	case errors.As(err, &stageErr):
		writeError(w, http.StatusConflict, stageErr.Error())
	case errors.Is(err, mentor.ErrEmptyInput), errors.Is(err, mentor.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func outcomeOf(generated bool) string {
	if generated {
		return "success"
	}
	return "provider_failure"
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
