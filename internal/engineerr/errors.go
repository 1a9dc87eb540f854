// Package engineerr implements the §7 error taxonomy shared by C1-C6: a
// small set of typed errors, each knowing whether it is retryable, so
// callers branch on a method instead of a side table of error strings.
package engineerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason classifies why a pipeline call failed, independent of which
// typed error wraps it. It is the retry/failover decision unit.
type Reason string

const (
	ReasonDimension          Reason = "dimension_mismatch"
	ReasonUnknownModel       Reason = "unknown_model"
	ReasonInvalidRequest     Reason = "invalid_request"
	ReasonProviderUnavailable Reason = "provider_unavailable"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonTimeout            Reason = "timeout"
	ReasonNoEligibleModel    Reason = "no_eligible_model"
	ReasonAllModelsExhausted Reason = "all_models_exhausted"
	ReasonStorage            Reason = "storage_error"
	ReasonUnknown            Reason = "unknown"
)

// Retryable reports whether a request that failed for this reason may
// succeed if retried, per §7's taxonomy annotations.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonProviderUnavailable, ReasonRateLimited, ReasonTimeout, ReasonStorage:
		return true
	default:
		return false
	}
}

// ShouldFailover reports whether C6 should try a different model/provider
// rather than retry the same one.
func (r Reason) ShouldFailover() bool {
	switch r {
	case ReasonProviderUnavailable, ReasonRateLimited, ReasonUnknownModel:
		return true
	default:
		return false
	}
}

// CallContext carries the "user-visible failures always include..."
// fields §7 requires: the model(s) tried, whether cache/tokens were
// already consumed, before the terminal error is raised.
type CallContext struct {
	ModelsTried   []string
	CacheConsumed bool
	TokensUsed    int
}

// PipelineError is the common shape of every engineerr type: a Reason,
// a CallContext, and an underlying cause.
type PipelineError struct {
	Reason  Reason
	Message string
	Cause   error
	CallContext
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Reason)
	if e.Message != "" {
		fmt.Fprintf(&b, " %s", e.Message)
	} else if e.Cause != nil {
		fmt.Fprintf(&b, " %s", e.Cause.Error())
	}
	if len(e.ModelsTried) > 0 {
		fmt.Fprintf(&b, " models=%s", strings.Join(e.ModelsTried, ","))
	}
	if e.CacheConsumed {
		b.WriteString(" cache_consumed=true")
	}
	if e.TokensUsed > 0 {
		fmt.Fprintf(&b, " tokens_used=%d", e.TokensUsed)
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// Retryable reports whether retrying this call may succeed.
func (e *PipelineError) Retryable() bool { return e.Reason.Retryable() }

// ShouldFailover reports whether a different model/provider should be tried.
func (e *PipelineError) ShouldFailover() bool { return e.Reason.ShouldFailover() }

func newError(reason Reason, msg string, cause error) *PipelineError {
	return &PipelineError{Reason: reason, Message: msg, Cause: cause}
}

// DimensionError reports a vector dimension mismatch against the schema.
// Fatal: never retried, never silently truncated or padded.
func DimensionError(got, want int) *PipelineError {
	return newError(ReasonDimension, fmt.Sprintf("embedding dimension %d disagrees with schema dimension %d", got, want), nil)
}

// UnknownModelError reports a config-level reference to a model or
// capability not present in the catalog.
func UnknownModelError(modelID string) *PipelineError {
	return newError(ReasonUnknownModel, fmt.Sprintf("unknown model %q", modelID), nil)
}

// InvalidRequestError reports a malformed prompt, oversize input, or
// content-policy refusal. Fatal.
func InvalidRequestError(msg string) *PipelineError {
	return newError(ReasonInvalidRequest, msg, nil)
}

// ProviderUnavailableError reports a transport/5xx/network failure.
// Retryable and triggers failover.
func ProviderUnavailableError(provider string, cause error) *PipelineError {
	return newError(ReasonProviderUnavailable, fmt.Sprintf("provider %s unavailable", provider), cause)
}

// RateLimitedError reports a C4 admission rejection or provider 429.
// Retryable; triggers admission wait or failover.
func RateLimitedError(modelID string, cause error) *PipelineError {
	return newError(ReasonRateLimited, fmt.Sprintf("rate limited for model %q", modelID), cause)
}

// TimeoutError reports a per-call or per-request deadline exceeded.
// Retryable up to the configured retry budget.
func TimeoutError(stage string, cause error) *PipelineError {
	return newError(ReasonTimeout, fmt.Sprintf("%s deadline exceeded", stage), cause)
}

// NoEligibleModelError reports that no model passed the filter + admission
// check within the deadline. Terminal once raised.
func NoEligibleModelError(msg string) *PipelineError {
	return newError(ReasonNoEligibleModel, msg, nil)
}

// AllModelsExhaustedError reports that the retry budget was consumed
// across every candidate model. Terminal; carries the last underlying error.
func AllModelsExhaustedError(modelsTried []string, cause error) *PipelineError {
	e := newError(ReasonAllModelsExhausted, "retry budget exhausted across all candidate models", cause)
	e.ModelsTried = modelsTried
	return e
}

// StorageError reports a persistence failure. Retryable once for reads;
// surfaced directly for writes.
func StorageError(op string, cause error) *PipelineError {
	return newError(ReasonStorage, fmt.Sprintf("storage operation %q failed", op), cause)
}

// As extracts a *PipelineError from err's chain.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err (raw or a *PipelineError) should be retried.
func IsRetryable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Retryable()
	}
	return Classify(err).Retryable()
}

// ShouldFailover reports whether err warrants trying a different model/provider.
func ShouldFailover(err error) bool {
	if pe, ok := As(err); ok {
		return pe.ShouldFailover()
	}
	return Classify(err).ShouldFailover()
}

// Classify inspects a raw (non-PipelineError) error's message and guesses
// a Reason, for errors surfaced by provider SDKs we don't wrap directly.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests") || strings.Contains(s, "429"):
		return ReasonRateLimited
	case strings.Contains(s, "dimension"):
		return ReasonDimension
	case strings.Contains(s, "model not found") || strings.Contains(s, "unknown model"):
		return ReasonUnknownModel
	case strings.Contains(s, "invalid") || strings.Contains(s, "malformed") || strings.Contains(s, "400"):
		return ReasonInvalidRequest
	case strings.Contains(s, "storage") || strings.Contains(s, "sql") || strings.Contains(s, "database"):
		return ReasonStorage
	case strings.Contains(s, "unavailable") || strings.Contains(s, "connection refused") ||
		strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504"):
		return ReasonProviderUnavailable
	default:
		return ReasonUnknown
	}
}

// ClassifyStatusCode maps an HTTP status code from a provider response to
// a Reason, grounded on the same dispatch table provider SDKs expose.
func ClassifyStatusCode(status int) Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimited
	case status == http.StatusBadRequest:
		return ReasonInvalidRequest
	case status == http.StatusNotFound:
		return ReasonUnknownModel
	case status >= 500:
		return ReasonProviderUnavailable
	default:
		return ReasonUnknown
	}
}
