// Package guardrails classifies questions and answers as SAFE, REFUSE, or
// REVIEW. The pipeline treats REVIEW as "proceed" (fail-open); that mapping is
// a product decision and lives in the orchestrator, not here.
package guardrails

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Outcome is the safety classification result.
type Outcome string

const (
	OutcomeSafe   Outcome = "SAFE"
	OutcomeRefuse Outcome = "REFUSE"
	OutcomeReview Outcome = "REVIEW"
)

// Service gates text through the configured classifier chain.
type Service struct {
	enabled    bool
	classifier Classifier
	logger     *zap.Logger
}

// NewService creates the guardrails service. When disabled, classification is
// an explicit bypass: every input maps to SAFE without consulting the
// classifier.
func NewService(enabled bool, classifier Classifier, logger *zap.Logger) *Service {
	return &Service{enabled: enabled, classifier: classifier, logger: logger}
}

// ClassifyQuestion classifies an incoming question.
func (s *Service) ClassifyQuestion(ctx context.Context, text string) Outcome {
	return s.classify(ctx, text)
}

// ClassifyAnswer classifies an outgoing answer.
func (s *Service) ClassifyAnswer(ctx context.Context, text string) Outcome {
	return s.classify(ctx, text)
}

func (s *Service) classify(ctx context.Context, text string) Outcome {
	if !s.enabled {
		return OutcomeSafe
	}
	if strings.TrimSpace(text) == "" {
		return OutcomeReview
	}

	outcome := s.classifier.Classify(ctx, text)
	switch outcome {
	case OutcomeSafe, OutcomeRefuse:
		return outcome
	default:
		// Anything the classifier can't decide lands in REVIEW; callers that
		// need stricter behavior must tighten the classifier, not this stage.
		s.logger.Warn("classification inconclusive, marking for review")
		return OutcomeReview
	}
}
