package embedding

import "github.com/ninedomain/loreengine/internal/engineerr"

// UnknownModel reports a request for an embedding model the provider
// does not recognize.
func UnknownModel(modelID string) error {
	return engineerr.UnknownModelError(modelID)
}

// ProviderUnavailable wraps a transport/5xx failure from a provider.
func ProviderUnavailable(provider string, cause error) error {
	return engineerr.ProviderUnavailableError(provider, cause)
}

// RateLimited reports a 429 from the embedding provider.
func RateLimited(modelID string, cause error) error {
	return engineerr.RateLimitedError(modelID, cause)
}

// OversizeInput reports a text (or batch) exceeding the provider's limits.
func OversizeInput(msg string) error {
	return engineerr.InvalidRequestError(msg)
}
