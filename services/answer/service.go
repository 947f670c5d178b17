// Package answer runs the knowledge-grounded answer pipeline: quota, safety,
// the three cache tiers, retrieval, grounding, model invocation, and history
// persistence, in a strict sequential order where every stage may terminate
// the request.
package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/owlhq/answerplane/config"
	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/services/events"
	"github.com/owlhq/answerplane/services/guardrails"
	"github.com/owlhq/answerplane/services/history"
	"github.com/owlhq/answerplane/services/providers"
	"github.com/owlhq/answerplane/services/retrieval"
	"github.com/owlhq/answerplane/services/websearch"
)

// Fixed response messages. These are part of the public contract: callers and
// cache entries depend on the exact wording.
const (
	QuotaExceededMessage   = "Quota exceeded for this tenant. Please upgrade your plan or try later."
	QuestionRefusedMessage = "I can't assist with that request."
	AnswerRefusedMessage   = "I can't provide that information."
	BudgetExceededMessage  = "Budget exceeded for this tenant. Please try later."
	NoGroundingMessage     = "I don't know based on the provided knowledge."
)

const groundedSystemPrompt = "You are Owl, a helpful assistant for tenant knowledge bases. " +
	"Use ONLY the information inside <CONTEXT> to answer the question. " +
	"If the context does not contain the answer, say you don't know. Be concise."

const webSystemPrompt = "Use ONLY the information in <CONTEXT> to answer. If unknown, say you don't know."

// QuotaGate is the monthly request quota boundary.
type QuotaGate interface {
	AllowRequest(ctx context.Context, tenantID string) (bool, error)
	RecordRequest(ctx context.Context, tenantID string) error
}

// BudgetGate is the monthly spend budget boundary.
type BudgetGate interface {
	AllowSpend(ctx context.Context, tenantID string, amountUSD float64) (bool, error)
	RecordSpend(ctx context.Context, tenantID string, amountUSD float64) error
}

// SafetyClassifier gates questions and answers.
type SafetyClassifier interface {
	ClassifyQuestion(ctx context.Context, text string) guardrails.Outcome
	ClassifyAnswer(ctx context.Context, text string) guardrails.Outcome
}

// SemanticCache is the similarity-matched answer cache.
type SemanticCache interface {
	Lookup(ctx context.Context, tenantID, question string) string
	Save(ctx context.Context, tenantID, question, answer string)
}

// PromptCache is the exact-match answer cache.
type PromptCache interface {
	Lookup(ctx context.Context, tenantID, model, prompt string) string
	Save(ctx context.Context, tenantID, model, prompt, answer string)
}

// PreferenceCache is the feedback-curated answer cache.
type PreferenceCache interface {
	Lookup(ctx context.Context, tenantID, question string) string
}

// Retriever searches the tenant's knowledge base.
type Retriever interface {
	Search(ctx context.Context, tenantID, query, scopeDocument string, topK int) ([]models.RetrievalHit, error)
}

// ModelRouter resolves the chat client for a tenant.
type ModelRouter interface {
	ResolveSelection(ctx context.Context, tenantID string) models.ModelSelection
	ClientFor(ctx context.Context, tenantID string, sel models.ModelSelection) providers.ChatClient
}

// WebSearcher is the web fallback boundary.
type WebSearcher interface {
	Enabled() bool
	MaxCalls() int
	Search(ctx context.Context, query string, limit int) []websearch.Result
}

// SettingsSource supplies tenant feature toggles.
type SettingsSource interface {
	Settings(ctx context.Context, tenantID string) (models.TenantSettings, error)
}

// EventPublisher receives pipeline telemetry.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Services bundles the pipeline's collaborators. Prompt, Preference, Web,
// and Events may be nil; those tiers then degrade to a miss or a no-op.
type Services struct {
	Quota      QuotaGate
	Budget     BudgetGate
	Safety     SafetyClassifier
	Semantic   SemanticCache
	Prompt     PromptCache
	Preference PreferenceCache
	Retriever  Retriever
	Router     ModelRouter
	Web        WebSearcher
	Settings   SettingsSource
	History    history.Store
	Events     EventPublisher
}

// Service is the answer pipeline orchestrator.
type Service struct {
	deps     Services
	cfg      *config.Config
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the orchestrator.
func NewService(cfg *config.Config, deps Services, logger *zap.Logger) *Service {
	return &Service{
		deps:     deps,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Answer runs the full pipeline for one request. It returns a response for
// every terminal outcome including refusals; an error means the pipeline
// could not produce an outcome (invalid input, provider failure, timeout).
func (s *Service) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewInvalidRequestError(err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, NewInvalidRequestError("question must not be blank")
	}

	requestID := uuid.New().String()
	started := time.Now()
	logger := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("tenant_id", req.TenantID))

	// Stage 1: quota. Attempts are counted even when a later stage refuses.
	allowed, err := s.deps.Quota.AllowRequest(ctx, req.TenantID)
	if err != nil {
		return nil, NewQuotaError("quota check failed", err)
	}
	if !allowed {
		logger.Info("quota exceeded")
		return s.finish(ctx, req, requestID, QuotaExceededMessage, nil, false, models.SafetyRefuse, started)
	}
	if err := s.deps.Quota.RecordRequest(ctx, req.TenantID); err != nil {
		return nil, NewQuotaError("quota record failed", err)
	}

	// Stage 2: question safety. REVIEW proceeds (fail-open).
	if outcome := s.classifyQuestion(ctx, req.TenantID, req.Question); outcome == guardrails.OutcomeRefuse {
		logger.Info("question refused by guardrails")
		return s.finish(ctx, req, requestID, QuestionRefusedMessage, nil, false, models.SafetyRefuse, started)
	}

	// Stage 3: semantic cache.
	if cached := s.lookupSemantic(ctx, req.TenantID, req.Question); cached != "" {
		logger.Debug("semantic cache hit")
		return s.finish(ctx, req, requestID, cached, nil, true, models.SafetySafe, started)
	}

	// Stage 4: exact prompt cache, keyed by the resolved model.
	sel := s.deps.Router.ResolveSelection(ctx, req.TenantID)
	if cached := s.lookupPrompt(ctx, req.TenantID, sel.ModelID(), req.Question); cached != "" {
		logger.Debug("prompt cache hit", zap.String("model", sel.ModelID()))
		return s.finish(ctx, req, requestID, cached, nil, true, models.SafetySafe, started)
	}

	// Stage 5: preference memory.
	if cached := s.lookupPreference(ctx, req.TenantID, req.Question); cached != "" {
		logger.Debug("preference memory hit")
		return s.finish(ctx, req, requestID, cached, nil, true, models.SafetySafe, started)
	}

	// Stage 6: retrieval.
	strong, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	// Stage 7: grounding decision.
	if len(strong) == 0 {
		if s.webAllowed(ctx, req) {
			return s.answerFromWeb(ctx, req, requestID, sel, logger, started)
		}
		logger.Debug("no grounding, fallback not allowed")
		s.saveSemantic(ctx, req.TenantID, req.Question, NoGroundingMessage)
		return s.finish(ctx, req, requestID, NoGroundingMessage, nil, false, models.SafetySafe, started)
	}

	// Stage 8: grounded answer.
	return s.answerFromKnowledge(ctx, req, requestID, sel, strong, logger, started)
}

func (s *Service) answerFromKnowledge(ctx context.Context, req models.AnswerRequest, requestID string, sel models.ModelSelection, strong []models.RetrievalHit, logger *zap.Logger, started time.Time) (*models.AnswerResponse, error) {
	texts := make([]string, 0, len(strong))
	sources := make([]string, 0, len(strong))
	for _, hit := range strong {
		texts = append(texts, hit.Text)
		sources = append(sources, hit.Metadata.Source())
	}
	sources = dedup(sources)

	estimate := s.cfg.Cost.EstimatePerCallUSD
	allowed, err := s.deps.Budget.AllowSpend(ctx, req.TenantID, estimate)
	if err != nil {
		return nil, NewBudgetError("budget check failed", err)
	}
	if !allowed {
		logger.Info("budget exceeded")
		return s.finish(ctx, req, requestID, BudgetExceededMessage, nil, false, models.SafetyRefuse, started)
	}

	user := buildUserPrompt(texts, req.Question)
	answerText, err := s.invokeModel(ctx, req.TenantID, sel, groundedSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	s.recordSpend(ctx, req.TenantID, requestID, sel, estimate)

	final := appendSources(answerText, sources)

	if outcome := s.classifyAnswer(ctx, req.TenantID, final); outcome == guardrails.OutcomeRefuse {
		logger.Info("answer refused by guardrails")
		return s.finish(ctx, req, requestID, AnswerRefusedMessage, nil, false, models.SafetyRefuse, started)
	}

	s.saveSemantic(ctx, req.TenantID, req.Question, final)
	s.savePrompt(ctx, req.TenantID, sel.ModelID(), req.Question, final)

	logger.Info("answered from knowledge base",
		zap.Int("hits", len(strong)),
		zap.String("model", sel.ModelID()),
		zap.Duration("latency", time.Since(started)))
	return s.finish(ctx, req, requestID, final, sources, false, models.SafetySafe, started)
}

func (s *Service) answerFromWeb(ctx context.Context, req models.AnswerRequest, requestID string, sel models.ModelSelection, logger *zap.Logger, started time.Time) (*models.AnswerResponse, error) {
	maxCalls := s.deps.Web.MaxCalls()
	if req.Fallback != nil && req.Fallback.MaxWebCalls > 0 {
		maxCalls = req.Fallback.MaxWebCalls
	}
	if maxCalls < 1 {
		maxCalls = 1
	}

	callCtx, cancel := s.callContext(ctx)
	results := s.deps.Web.Search(callCtx, req.Question, maxCalls)
	cancel()
	if len(results) == 0 {
		// Transient failure or genuinely nothing found: same answer as the
		// no-fallback path, but not cached.
		logger.Debug("web fallback returned nothing")
		return s.finish(ctx, req, requestID, NoGroundingMessage, nil, false, models.SafetySafe, started)
	}

	estimate := s.cfg.Cost.EstimatePerCallUSD
	if req.Fallback != nil && req.Fallback.BudgetUSD > 0 && estimate > req.Fallback.BudgetUSD {
		logger.Info("web fallback budget too small for one call")
		return s.finish(ctx, req, requestID, BudgetExceededMessage, nil, false, models.SafetyRefuse, started)
	}
	allowed, err := s.deps.Budget.AllowSpend(ctx, req.TenantID, estimate)
	if err != nil {
		return nil, NewBudgetError("budget check failed", err)
	}
	if !allowed {
		logger.Info("budget exceeded on web fallback")
		return s.finish(ctx, req, requestID, BudgetExceededMessage, nil, false, models.SafetyRefuse, started)
	}

	texts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}
	sources = dedup(sources)

	user := buildUserPrompt(texts, req.Question)
	answerText, err := s.invokeModel(ctx, req.TenantID, sel, webSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	s.recordSpend(ctx, req.TenantID, requestID, sel, estimate)

	final := appendSources(answerText, sources)

	if outcome := s.classifyAnswer(ctx, req.TenantID, final); outcome == guardrails.OutcomeRefuse {
		logger.Info("web answer refused by guardrails")
		return s.finish(ctx, req, requestID, AnswerRefusedMessage, nil, false, models.SafetyRefuse, started)
	}

	// Web answers go to the prompt cache only: they are time-sensitive, so
	// the similarity tier must not serve them for paraphrased questions.
	s.savePrompt(ctx, req.TenantID, sel.ModelID(), req.Question, final)

	logger.Info("answered from web fallback",
		zap.Int("results", len(results)),
		zap.String("model", sel.ModelID()),
		zap.Duration("latency", time.Since(started)))
	return s.finish(ctx, req, requestID, final, sources, false, models.SafetySafe, started)
}

// finish persists the chat record, emits the chat event, and builds the
// response. Every terminal path goes through here exactly once.
func (s *Service) finish(ctx context.Context, req models.AnswerRequest, requestID, answerText string, sources []string, cacheHit bool, safety models.SafetyTag, started time.Time) (*models.AnswerResponse, error) {
	rec := &models.ChatRecord{
		TenantID: req.TenantID,
		Question: req.Question,
		Answer:   answerText,
		CacheHit: cacheHit,
		Sources:  sources,
	}
	recordID, err := s.deps.History.Save(ctx, rec)
	if err != nil {
		return nil, NewInternalError("failed to persist chat record", err)
	}

	if s.deps.Events != nil {
		s.deps.Events.Publish(events.Event{
			Kind:      events.KindChat,
			TenantID:  req.TenantID,
			RequestID: requestID,
			Fields: map[string]any{
				"record_id":  recordID,
				"cache_hit":  cacheHit,
				"safety":     string(safety),
				"latency_ms": time.Since(started).Milliseconds(),
			},
		})
	}

	return &models.AnswerResponse{
		Answer:   answerText,
		Sources:  sources,
		RecordID: recordID,
		Safety:   safety,
	}, nil
}

func (s *Service) invokeModel(ctx context.Context, tenantID string, sel models.ModelSelection, system, user string) (string, error) {
	client := s.deps.Router.ClientFor(ctx, tenantID, sel)

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	answerText, err := client.Complete(callCtx, system, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return "", NewTimeoutError("model call timed out", err).WithDetail("model", sel.ModelID())
		}
		return "", NewProviderError("model call failed", providers.IsRetryable(err), err).WithDetail("model", sel.ModelID())
	}
	if strings.TrimSpace(answerText) == "" {
		return "", NewProviderError("model returned empty answer", true, nil).WithDetail("model", sel.ModelID())
	}
	return answerText, nil
}

func (s *Service) recordSpend(ctx context.Context, tenantID, requestID string, sel models.ModelSelection, amountUSD float64) {
	if err := s.deps.Budget.RecordSpend(ctx, tenantID, amountUSD); err != nil {
		s.logger.Error("failed to record spend",
			zap.String("tenant_id", tenantID), zap.Error(err))
	}
	if s.deps.Events != nil {
		s.deps.Events.Publish(events.Event{
			Kind:      events.KindCost,
			TenantID:  tenantID,
			RequestID: requestID,
			Fields: map[string]any{
				"amount_usd": amountUSD,
				"model":      sel.ModelID(),
			},
		})
	}
}

func (s *Service) retrieve(ctx context.Context, req models.AnswerRequest) ([]models.RetrievalHit, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	hits, err := s.deps.Retriever.Search(callCtx, req.TenantID, req.Question, req.ScopeDocument, s.cfg.Retrieval.TopK)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError("retrieval timed out", err)
		}
		return nil, NewInternalError("retrieval failed", err)
	}
	return retrieval.FilterStrong(hits, s.cfg.Retrieval.ScoreThreshold, s.cfg.Retrieval.KeepTop), nil
}

func (s *Service) webAllowed(ctx context.Context, req models.AnswerRequest) bool {
	if s.deps.Web == nil || !s.deps.Web.Enabled() {
		return false
	}
	if req.AllowWeb || (req.Fallback != nil && req.Fallback.Enabled) {
		return true
	}
	if s.deps.Settings != nil {
		if settings, err := s.deps.Settings.Settings(ctx, req.TenantID); err == nil {
			return settings.FallbackEnabled
		}
	}
	return false
}

func (s *Service) classifyQuestion(ctx context.Context, tenantID, text string) guardrails.Outcome {
	if !s.guardrailsEnabled(ctx, tenantID) {
		return guardrails.OutcomeSafe
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.deps.Safety.ClassifyQuestion(callCtx, text)
}

func (s *Service) classifyAnswer(ctx context.Context, tenantID, text string) guardrails.Outcome {
	if !s.guardrailsEnabled(ctx, tenantID) {
		return guardrails.OutcomeSafe
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.deps.Safety.ClassifyAnswer(callCtx, text)
}

// guardrailsEnabled reads the tenant toggle. Missing settings keep the global
// behavior, so classification still runs.
func (s *Service) guardrailsEnabled(ctx context.Context, tenantID string) bool {
	if s.deps.Settings == nil {
		return true
	}
	settings, err := s.deps.Settings.Settings(ctx, tenantID)
	if err != nil {
		return true
	}
	return settings.GuardrailsEnabled
}

func (s *Service) lookupSemantic(ctx context.Context, tenantID, question string) string {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.deps.Semantic.Lookup(callCtx, tenantID, question)
}

func (s *Service) saveSemantic(ctx context.Context, tenantID, question, answerText string) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	s.deps.Semantic.Save(callCtx, tenantID, question, answerText)
}

func (s *Service) lookupPrompt(ctx context.Context, tenantID, model, prompt string) string {
	if s.deps.Prompt == nil {
		return ""
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.deps.Prompt.Lookup(callCtx, tenantID, model, prompt)
}

func (s *Service) savePrompt(ctx context.Context, tenantID, model, prompt, answerText string) {
	if s.deps.Prompt == nil {
		return
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	s.deps.Prompt.Save(callCtx, tenantID, model, prompt, answerText)
}

func (s *Service) lookupPreference(ctx context.Context, tenantID, question string) string {
	if s.deps.Preference == nil {
		return ""
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.deps.Preference.Lookup(callCtx, tenantID, question)
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.ExternalCallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func buildUserPrompt(contextTexts []string, question string) string {
	var b strings.Builder
	b.WriteString("<CONTEXT>\n")
	for _, t := range contextTexts {
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("</CONTEXT>\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func appendSources(answerText string, sources []string) string {
	if len(sources) == 0 {
		return answerText
	}
	var b strings.Builder
	b.WriteString(answerText)
	b.WriteString("\n\nSources:\n")
	for _, src := range sources {
		b.WriteString("- ")
		b.WriteString(src)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
