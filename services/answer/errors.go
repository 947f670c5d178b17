package answer

import "fmt"

// Pipeline error codes.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeQuota          = "QUOTA_ERROR"
	CodeBudget         = "BUDGET_ERROR"
	CodeSafety         = "SAFETY_ERROR"
	CodeProvider       = "PROVIDER_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL_ERROR"
)

// PipelineError is the typed failure surfaced by the answer pipeline. It is
// distinct from refusal responses: refusals are successful outcomes with a
// REFUSE tag, errors mean the pipeline could not produce an outcome at all.
type PipelineError struct {
	Code      string
	Message   string
	Details   map[string]any
	Retryable bool
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value to the error and returns it.
func (e *PipelineError) WithDetail(key string, value any) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsRetryable reports whether err is a PipelineError the caller may retry.
func IsRetryable(err error) bool {
	if pe, ok := err.(*PipelineError); ok {
		return pe.Retryable
	}
	return false
}

func NewInvalidRequestError(message string) *PipelineError {
	return &PipelineError{Code: CodeInvalidRequest, Message: message}
}

func NewQuotaError(message string, cause error) *PipelineError {
	return &PipelineError{Code: CodeQuota, Message: message, Retryable: true, Cause: cause}
}

func NewBudgetError(message string, cause error) *PipelineError {
	return &PipelineError{Code: CodeBudget, Message: message, Retryable: true, Cause: cause}
}

func NewSafetyError(message string, cause error) *PipelineError {
	return &PipelineError{Code: CodeSafety, Message: message, Cause: cause}
}

func NewProviderError(message string, retryable bool, cause error) *PipelineError {
	return &PipelineError{Code: CodeProvider, Message: message, Retryable: retryable, Cause: cause}
}

func NewTimeoutError(message string, cause error) *PipelineError {
	return &PipelineError{Code: CodeTimeout, Message: message, Retryable: true, Cause: cause}
}

func NewInternalError(message string, cause error) *PipelineError {
	return &PipelineError{Code: CodeInternal, Message: message, Cause: cause}
}
