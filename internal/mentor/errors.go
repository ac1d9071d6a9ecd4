package mentor

import "errors"

var (
	// ErrEmptyInput rejects an action whose required text input is empty.
	// The session is left untouched; the user simply retries.
	ErrEmptyInput = errors.New("input required")

	// ErrOutOfRange indicates a question index outside the catalog.
	ErrOutOfRange = errors.New("question index out of range")
)
