package interfaces

import "context"

// LLMProvider generates a completion for a single system + user prompt
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, system string, prompt string) (string, error)
}
