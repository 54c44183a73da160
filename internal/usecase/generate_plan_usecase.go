package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mealplan-orchestrator/internal/domain"
)

// GeneratePlanInput wraps the caller's preferences for end-to-end plan
// generation (retrieval + generation collaborator call).
type GeneratePlanInput struct {
	Prefs     domain.PlanPreferences
	MaxTokens int
}

// GeneratePlanOutput is the normalized generation response.
type GeneratePlanOutput struct {
	Plan          *GeneratedPlan
	Candidates    *CandidateSet
	Fallback      bool
	Reason        string
	PromptVersion string
}

// GeneratePlanUsecase defines the contract for generating grounded plans.
type GeneratePlanUsecase interface {
	Execute(ctx context.Context, input GeneratePlanInput) (*GeneratePlanOutput, error)
}

type generatePlanUsecase struct {
	retrieve      RetrieveCandidatesUsecase
	promptBuilder PromptBuilder
	generator     domain.PlanGenerator
	validator     PlanValidator
	maxTokens     int
	promptVersion string
	logger        *slog.Logger
}

// NewGeneratePlanUsecase wires retrieval, prompt building, and the
// generation collaborator.
func NewGeneratePlanUsecase(
	retrieve RetrieveCandidatesUsecase,
	promptBuilder PromptBuilder,
	generator domain.PlanGenerator,
	validator PlanValidator,
	maxTokens int,
	promptVersion string,
	logger *slog.Logger,
) GeneratePlanUsecase {
	return &generatePlanUsecase{
		retrieve:      retrieve,
		promptBuilder: promptBuilder,
		generator:     generator,
		validator:     validator,
		maxTokens:     maxTokens,
		promptVersion: promptVersion,
		logger:        logger,
	}
}

func (u *generatePlanUsecase) Execute(ctx context.Context, input GeneratePlanInput) (*GeneratePlanOutput, error) {
	set, err := u.retrieve.Execute(ctx, RetrieveCandidatesInput{Prefs: input.Prefs})
	if err != nil {
		// Empty candidate sets are the one hard error; pass it up.
		return nil, fmt.Errorf("candidate retrieval failed: %w", err)
	}

	prompt, err := u.promptBuilder.Build(input.Prefs, set)
	if err != nil {
		return u.fallback(set, fmt.Sprintf("prompt build failed: %v", err)), nil
	}

	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = u.maxTokens
	}

	resp, err := u.generator.Generate(ctx, prompt, maxTokens)
	if err != nil {
		u.logger.Warn("plan_generation_failed",
			slog.String("request_id", set.RequestID),
			slog.String("error", err.Error()))
		return u.fallback(set, fmt.Sprintf("generation failed: %v", err)), nil
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		u.logger.Warn("plan_generation_empty",
			slog.String("request_id", set.RequestID))
		return u.fallback(set, "empty generator response"), nil
	}
	if !resp.Done {
		return u.fallback(set, "generator response incomplete"), nil
	}

	plan, err := u.validator.Validate(resp.Text, set.TemplateCandidates)
	if err != nil {
		u.logger.Warn("plan_validation_failed",
			slog.String("request_id", set.RequestID),
			slog.String("error", err.Error()))
		return u.fallback(set, fmt.Sprintf("validation failed: %v", err)), nil
	}
	if plan.Fallback {
		reason := plan.Reason
		if reason == "" {
			reason = "model signaled fallback"
		}
		return u.fallback(set, reason), nil
	}

	u.logger.Info("plan_generated",
		slog.String("request_id", set.RequestID),
		slog.Int("days", len(plan.Days)),
		slog.String("model", u.generator.ModelName()))

	return &GeneratePlanOutput{
		Plan:          plan,
		Candidates:    set,
		Fallback:      false,
		PromptVersion: u.promptVersion,
	}, nil
}

func (u *generatePlanUsecase) fallback(set *CandidateSet, reason string) *GeneratePlanOutput {
	return &GeneratePlanOutput{
		Plan:          nil,
		Candidates:    set,
		Fallback:      true,
		Reason:        reason,
		PromptVersion: u.promptVersion,
	}
}
