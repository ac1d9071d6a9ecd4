package ai

import "fmt"

// The generation boundary classifies provider failures by HTTP status rather
// than by sniffing error text. Callers must not retry automatically; the
// classified error is surfaced to the user as the action's result text.

// AuthError indicates a missing or invalid provider credential.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("generation auth error: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// QuotaError indicates the provider-side quota or rate limit was exceeded.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("generation quota exceeded: %v", e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// PermissionError indicates the credential is valid but not allowed to use
// the requested model or endpoint.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("generation permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ExternalError wraps any other provider failure, including transport errors.
type ExternalError struct {
	Message string
	Err     error
}

func (e *ExternalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generation failed: %s", e.Message)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status from a provider API to the typed error
// taxonomy. message is the provider's own error text when available.
func classifyStatus(status int, message string) error {
	base := fmt.Errorf("provider returned %d: %s", status, message)
	switch status {
	case 400, 401:
		// Gemini reports bad API keys as 400 INVALID_ARGUMENT.
		return &AuthError{Err: base}
	case 403:
		return &PermissionError{Err: base}
	case 429:
		return &QuotaError{Err: base}
	default:
		return &ExternalError{Message: message, Err: base}
	}
}
