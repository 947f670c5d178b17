package guardrails

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/owlhq/answerplane/services/providers"
	"go.uber.org/zap"
)

// Classifier decides the safety outcome for a piece of text. Implementations
// return OutcomeReview when they cannot decide (transport failure, garbled
// model output); they never guess REFUSE.
type Classifier interface {
	Classify(ctx context.Context, text string) Outcome
}

var prohibitedPattern = regexp.MustCompile(`(?i)(bomb|weapon|explosive|child\s*abuse|credit\s*card|ssn)\b`)

// KeywordClassifier is the cheap prescreen: a prohibited-term regex. Matches
// refuse immediately; everything else is undecided so the next classifier in
// the chain gets a look.
type KeywordClassifier struct{}

// Classify applies the prohibited-pattern check.
func (KeywordClassifier) Classify(ctx context.Context, text string) Outcome {
	if prohibitedPattern.MatchString(text) {
		return OutcomeRefuse
	}
	return OutcomeReview
}

// ModelClassifier delegates to a chat model with a one-token SAFE/REFUSE
// protocol.
type ModelClassifier struct {
	client providers.ChatClient
	policy string
	logger *zap.Logger
}

// NewModelClassifier creates a model-backed classifier. The policy text is
// embedded in the system prompt.
func NewModelClassifier(client providers.ChatClient, policy string, logger *zap.Logger) *ModelClassifier {
	return &ModelClassifier{client: client, policy: policy, logger: logger}
}

// Classify asks the model for a single-token verdict. Transport errors map to
// REVIEW.
func (m *ModelClassifier) Classify(ctx context.Context, text string) Outcome {
	system := "You are a strict safety classifier. Follow the policy strictly.\nPOLICY:\n" + m.policy
	prompt := "Classify the following content as SAFE or REFUSE. Respond with exactly one token: SAFE or REFUSE.\n\n" + text

	out, err := m.client.Complete(ctx, system, prompt)
	if err != nil {
		m.logger.Warn("safety model call failed", zap.Error(err))
		return OutcomeReview
	}
	if strings.Contains(strings.ToUpper(out), "REFUSE") {
		return OutcomeRefuse
	}
	return OutcomeSafe
}

// RemoteClassifier calls a dedicated safety classification endpoint
// (POST /v1/classify). Errors fall back to the next classifier in the chain.
type RemoteClassifier struct {
	baseURL    string
	httpClient *http.Client
	next       Classifier
	logger     *zap.Logger
}

// NewRemoteClassifier creates a remote classifier with a local fallback chain.
func NewRemoteClassifier(baseURL string, timeout time.Duration, next Classifier, logger *zap.Logger) *RemoteClassifier {
	return &RemoteClassifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		next:       next,
		logger:     logger,
	}
}

type classifyResponse struct {
	Outcome string `json:"outcome"`
}

// Classify tries the remote endpoint first; on failure it delegates to the
// fallback chain (or REVIEW when there is none).
func (r *RemoteClassifier) Classify(ctx context.Context, text string) Outcome {
	payload, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/classify", bytes.NewReader(payload))
	if err != nil {
		return r.fallback(ctx, text)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("remote classifier unreachable", zap.Error(err))
		return r.fallback(ctx, text)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		r.logger.Warn("remote classifier error", zap.Int("status", resp.StatusCode))
		return r.fallback(ctx, text)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return r.fallback(ctx, text)
	}
	switch Outcome(strings.ToUpper(out.Outcome)) {
	case OutcomeSafe:
		return OutcomeSafe
	case OutcomeRefuse:
		return OutcomeRefuse
	default:
		return OutcomeReview
	}
}

func (r *RemoteClassifier) fallback(ctx context.Context, text string) Outcome {
	if r.next != nil {
		return r.next.Classify(ctx, text)
	}
	return OutcomeReview
}

// Chain runs classifiers in order and returns the first decisive outcome
// (SAFE or REFUSE). If none decides, the result is REVIEW.
type Chain []Classifier

// Classify implements Classifier.
func (c Chain) Classify(ctx context.Context, text string) Outcome {
	for _, cl := range c {
		switch out := cl.Classify(ctx, text); out {
		case OutcomeSafe, OutcomeRefuse:
			return out
		}
	}
	return OutcomeReview
}
