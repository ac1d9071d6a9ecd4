package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func geminiStub(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestGeminiGenerateText(t *testing.T) {
	srv := geminiStub(t, http.StatusOK, map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": "mentor reply"}}}},
		},
	})
	defer srv.Close()

	client, err := NewGeminiClient("key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	gen := NewGeminiGenerator(client.WithBaseURL(srv.URL), "gemini-1.5-flash")
	got, err := gen.GenerateText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "mentor reply" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGeminiClient("  "); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestGeminiErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"bad key as 400", http.StatusBadRequest, func(err error) bool {
			var target *AuthError
			return errors.As(err, &target)
		}},
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var target *AuthError
			return errors.As(err, &target)
		}},
		{"forbidden", http.StatusForbidden, func(err error) bool {
			var target *PermissionError
			return errors.As(err, &target)
		}},
		{"quota", http.StatusTooManyRequests, func(err error) bool {
			var target *QuotaError
			return errors.As(err, &target)
		}},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var target *ExternalError
			return errors.As(err, &target)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := geminiStub(t, tc.status, map[string]any{
				"error": map[string]string{"message": "provider says no"},
			})
			defer srv.Close()

			client, err := NewGeminiClient("key")
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			gen := NewGeminiGenerator(client.WithBaseURL(srv.URL), "gemini-1.5-flash")
			_, err = gen.GenerateText(context.Background(), "system", "user")
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if !tc.check(err) {
				t.Fatalf("status %d classified as %T (%v)", tc.status, err, err)
			}
		})
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := geminiStub(t, http.StatusOK, map[string]any{"candidates": []any{}})
	defer srv.Close()

	client, _ := NewGeminiClient("key")
	gen := NewGeminiGenerator(client.WithBaseURL(srv.URL), "gemini-1.5-flash")
	_, err := gen.GenerateText(context.Background(), "system", "user")
	var target *ExternalError
	if !errors.As(err, &target) {
		t.Fatalf("expected ExternalError for empty candidates, got %T", err)
	}
}
