package domain

import "context"

// GenerateOptions bound a single text-generation call.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// Generator is the interface all generative-text providers must implement.
// A single prompt in, the model's raw text out. No streaming, no session
// state carried between calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Name() string
	Models() []string
	Healthy(ctx context.Context) error
}
