package domain

import "context"

// GenerationResult is the raw text response from the generation collaborator.
type GenerationResult struct {
	Text string
	Done bool
}

// PlanGenerator is the downstream generative model. The pipeline only hands
// it a grounding payload; prompt wording and model choice live behind this
// interface.
type PlanGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*GenerationResult, error)
	ModelName() string
}
