package engineerr

import (
	"errors"
	"strings"
	"testing"
)

func TestReasonRetryable(t *testing.T) {
	tests := []struct {
		reason Reason
		want   bool
	}{
		{ReasonProviderUnavailable, true},
		{ReasonRateLimited, true},
		{ReasonTimeout, true},
		{ReasonStorage, true},
		{ReasonDimension, false},
		{ReasonUnknownModel, false},
		{ReasonInvalidRequest, false},
		{ReasonNoEligibleModel, false},
		{ReasonAllModelsExhausted, false},
		{ReasonUnknown, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := tt.reason.Retryable(); got != tt.want {
				t.Errorf("Reason(%q).Retryable() = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}

func TestReasonShouldFailover(t *testing.T) {
	tests := []struct {
		reason Reason
		want   bool
	}{
		{ReasonProviderUnavailable, true},
		{ReasonRateLimited, true},
		{ReasonUnknownModel, true},
		{ReasonTimeout, false},
		{ReasonStorage, false},
		{ReasonDimension, false},
		{ReasonInvalidRequest, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := tt.reason.ShouldFailover(); got != tt.want {
				t.Errorf("Reason(%q).ShouldFailover() = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ReasonUnknown},
		{"timeout", errors.New("request timeout"), ReasonTimeout},
		{"deadline exceeded", errors.New("context deadline exceeded"), ReasonTimeout},
		{"rate limit", errors.New("rate limit exceeded"), ReasonRateLimited},
		{"429", errors.New("HTTP 429 too many requests"), ReasonRateLimited},
		{"dimension", errors.New("embedding dimension mismatch"), ReasonDimension},
		{"unknown model", errors.New("unknown model requested"), ReasonUnknownModel},
		{"invalid", errors.New("invalid request: oversize input"), ReasonInvalidRequest},
		{"storage", errors.New("sql: no rows in result set"), ReasonStorage},
		{"unavailable", errors.New("connection refused"), ReasonProviderUnavailable},
		{"500", errors.New("HTTP 500 internal server error"), ReasonProviderUnavailable},
		{"unrecognized", errors.New("something went wrong"), ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   Reason
	}{
		{429, ReasonRateLimited},
		{400, ReasonInvalidRequest},
		{404, ReasonUnknownModel},
		{500, ReasonProviderUnavailable},
		{503, ReasonProviderUnavailable},
		{200, ReasonUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyStatusCode(tt.status); got != tt.want {
			t.Errorf("ClassifyStatusCode(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAllModelsExhaustedErrorCarriesModelsTried(t *testing.T) {
	cause := errors.New("upstream 503")
	err := AllModelsExhaustedError([]string{"claude-3-opus", "gpt-4o"}, cause)

	if err.Reason != ReasonAllModelsExhausted {
		t.Fatalf("Reason = %q, want %q", err.Reason, ReasonAllModelsExhausted)
	}
	if !errors.Is(err.Unwrap(), cause) {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	msg := err.Error()
	for _, model := range []string{"claude-3-opus", "gpt-4o"} {
		if !strings.Contains(msg, model) {
			t.Errorf("Error() = %q, want it to mention %q", msg, model)
		}
	}
}

func TestDimensionErrorNotRetryable(t *testing.T) {
	err := DimensionError(768, 1536)
	if err.Retryable() {
		t.Error("DimensionError should never be retryable")
	}
}

func TestAsExtractsPipelineError(t *testing.T) {
	err := RateLimitedError("gpt-4o", errors.New("429"))
	pe, ok := As(err)
	if !ok {
		t.Fatal("As() = false, want true")
	}
	if pe.Reason != ReasonRateLimited {
		t.Errorf("Reason = %q, want %q", pe.Reason, ReasonRateLimited)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable(RateLimitedError) = false, want true")
	}
	if !ShouldFailover(err) {
		t.Error("ShouldFailover(RateLimitedError) = false, want true")
	}
}
