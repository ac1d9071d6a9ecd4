package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"offsecmentor/internal/app"
	"offsecmentor/internal/store"
)

func TestLoginRateLimit(t *testing.T) {
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		Store:     mem,
		Sessions:  mem,
		Generator: &scriptedGenerator{reply: "ok"},
		Cooldown:  time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := a.SignUp("alice", "", "correct-horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	redisSrv := miniredis.RunT(t)
	srv, err := New(Config{
		App:                      a,
		RedisAddr:                redisSrv.Addr(),
		SignupRateLimitPerMinute: 10,
		LoginRateLimitPerMinute:  1,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := []byte(`{"username":"alice","password":"correct-horse"}`)
	resp1, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("first login request failed: %v", err)
	}
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", resp1.StatusCode)
	}

	resp2, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("second login request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}
}
