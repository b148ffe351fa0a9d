package llm

import "context"

// TextGenerator is a single-prompt text completion backend.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}
