package ai

import "context"

// TextGenerator produces text from a system prompt and a user message.
// Implementations classify provider failures into the typed errors declared
// in errors.go and never retry on their own.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
