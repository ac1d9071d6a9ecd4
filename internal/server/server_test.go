package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"offsecmentor/internal/app"
	"offsecmentor/internal/mentor"
	"offsecmentor/internal/store"
	"offsecmentor/pkg/ai"
)

type scriptedGenerator struct {
	reply string
	err   error
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestServer(t *testing.T, gen *scriptedGenerator) *httptest.Server {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		Store:     mem,
		Sessions:  mem,
		Generator: gen,
		Cooldown:  time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func signupAndLogin(t *testing.T, baseURL string) string {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, baseURL+"/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "correct-horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	resp, payload := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "", map[string]string{
		"username": "alice", "password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", payload)
	}
	return token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &scriptedGenerator{reply: "ok"})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, &scriptedGenerator{reply: "ok"})
	token := signupAndLogin(t, ts.URL)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	if payload["username"] != "alice" {
		t.Fatalf("unexpected user payload: %v", payload)
	}

	// duplicate signup is a conflict
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "correct-horse",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", resp.StatusCode)
	}

	// bad credentials
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}

	// logout invalidates the token
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", resp.StatusCode)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := newTestServer(t, &scriptedGenerator{reply: "ok"})
	for _, path := range []string{"/api/session", "/api/users/me", "/api/assessment/question"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestGuidedFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, &scriptedGenerator{reply: "generated text"})
	token := signupAndLogin(t, ts.URL)

	// roadmap before the assessment is a stage violation
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/roadmap", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("early roadmap status = %d", resp.StatusCode)
	}

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/assessment/start", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if payload["position"].(float64) != 1 {
		t.Fatalf("unexpected first question: %v", payload)
	}

	// empty answer is a validation error
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/assessment/answer", token, map[string]string{"answer": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty answer status = %d", resp.StatusCode)
	}

	var final map[string]any
	for i := 0; i < len(mentor.Questions); i++ {
		resp, final = doJSON(t, http.MethodPost, ts.URL+"/api/assessment/answer", token,
			map[string]string{"answer": fmt.Sprintf("answer %d", i+1)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer %d status = %d", i, resp.StatusCode)
		}
	}
	if final["final"] != true || final["generated"] != true {
		t.Fatalf("unexpected final outcome: %v", final)
	}

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/roadmap", token, nil)
	if resp.StatusCode != http.StatusOK || payload["generated"] != true {
		t.Fatalf("roadmap failed: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/enumeration", token,
		map[string]string{"scan": "22/tcp open ssh"})
	if resp.StatusCode != http.StatusOK || payload["generated"] != true {
		t.Fatalf("enumeration failed: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/report", token,
		map[string]string{"findings": "weak SSH ciphers"})
	if resp.StatusCode != http.StatusOK || payload["generated"] != true {
		t.Fatalf("report failed: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/session", token, nil)
	if resp.StatusCode != http.StatusOK || payload["stage"] != "report_available" {
		t.Fatalf("unexpected session snapshot: %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/artifacts/roadmap", token, nil)
	if resp.StatusCode != http.StatusOK || payload["content"] != "generated text" {
		t.Fatalf("stored roadmap fetch failed: %d %v", resp.StatusCode, payload)
	}

	// report output is session-only
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/artifacts/report", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("report artifact status = %d", resp.StatusCode)
	}
}

func TestProviderFailureReturns200WithResultText(t *testing.T) {
	gen := &scriptedGenerator{err: &ai.QuotaError{Err: fmt.Errorf("quota exceeded")}}
	ts := newTestServer(t, gen)
	token := signupAndLogin(t, ts.URL)

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/assessment/start", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed: %d", resp.StatusCode)
	}
	var resp *http.Response
	var payload map[string]any
	for i := 0; i < len(mentor.Questions); i++ {
		resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/assessment/answer", token,
			map[string]string{"answer": "an answer"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer %d status = %d", i, resp.StatusCode)
		}
	}
	if payload["generated"] != false {
		t.Fatalf("expected generated=false, got %v", payload)
	}
	result, _ := payload["result"].(string)
	if result == "" {
		t.Fatalf("expected classified failure text as result")
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/session", token, nil)
	if payload["stage"] != "assessment_in_progress" {
		t.Fatalf("stage advanced on provider failure: %v", payload["stage"])
	}
}

func TestSessionModeAndReset(t *testing.T) {
	ts := newTestServer(t, &scriptedGenerator{reply: "ok"})
	token := signupAndLogin(t, ts.URL)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/session/mode", token, map[string]string{"mode": "redteam"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set mode status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/mode", token, map[string]string{"mode": "bogus"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d", resp.StatusCode)
	}

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/assessment/start", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/reset", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	_, payload := doJSON(t, http.MethodGet, ts.URL+"/api/session", token, nil)
	if payload["stage"] != "assessment_not_started" || payload["mode"] != "redteam" {
		t.Fatalf("unexpected session after reset: %v", payload)
	}
}
