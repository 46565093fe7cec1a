package scribepool

import (
	"context"
	"errors"
	"strings"
)

// Classification describes how a failure should be handled and what to tell
// the user about it. It is recomputed for every failure, never cached.
type Classification struct {
	Retryable  bool
	Status     int
	Message    string
	Suggestion string
}

// Classify maps a failure to a retry decision and a remedy suggestion.
//
// Permanent (never retried): authentication failures, malformed requests,
// not-found conditions, and domain-permanent conditions such as unavailable
// or age-restricted content. Everything else (network errors, 429s, 5xx,
// timeouts) is worth retrying.
func Classify(err error) Classification {
	c := Classification{Retryable: true}
	if err == nil {
		return c
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		c.Status = pe.Status
		c.Message = pe.Message
	} else {
		c.Message = err.Error()
	}
	msg := strings.ToLower(c.Message)

	switch {
	case errors.Is(err, context.Canceled):
		c.Retryable = false
		c.Suggestion = "the operation was cancelled"

	case errors.Is(err, context.DeadlineExceeded):
		c.Suggestion = "the request timed out; slower networks or long audio may need a higher timeout"

	case c.Status == 401 || c.Status == 403 ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "invalid_api_key"):
		c.Retryable = false
		c.Suggestion = "check that your API key is valid and active"

	case c.Status == 400 || c.Status == 422 ||
		strings.Contains(msg, "invalid request"):
		c.Retryable = false
		c.Suggestion = "the request was rejected as malformed; fix the input before retrying"

	case c.Status == 404 || strings.Contains(msg, "model not found") ||
		strings.Contains(msg, "model_not_found"):
		c.Retryable = false
		c.Suggestion = "the requested model or resource does not exist"

	case strings.Contains(msg, "invalid url"):
		c.Retryable = false
		c.Suggestion = "the URL could not be used; check that it points at a real video"

	case strings.Contains(msg, "video unavailable") ||
		strings.Contains(msg, "content unavailable"):
		c.Retryable = false
		c.Suggestion = "the content is unavailable and cannot be fetched"

	case strings.Contains(msg, "age-restricted") ||
		strings.Contains(msg, "age restricted"):
		c.Retryable = false
		c.Suggestion = "age-restricted content cannot be processed"

	case strings.Contains(msg, "empty audio") ||
		strings.Contains(msg, "no audio"):
		c.Retryable = false
		c.Suggestion = "the input contains no audio to transcribe"

	case c.Status == 429 || strings.Contains(msg, "rate limit"):
		c.Suggestion = "the provider is rate limiting; the call will be retried or moved to another key"

	case c.Status >= 500:
		c.Suggestion = "the provider had an internal error; the call will be retried"

	default:
		c.Suggestion = "a transient error occurred; the call will be retried"
	}

	return c
}

// IsQuotaError reports whether err is the provider telling us a credential's
// quota window is exhausted. These are handled at the pool level, where
// another credential may absorb the job, rather than retried on the same key.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProviderError
	msg := err.Error()
	if errors.As(err, &pe) {
		if pe.Status == 429 {
			return true
		}
		msg = pe.Message
	}

	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit reached") ||
		strings.Contains(lower, "rate_limit_exceeded") ||
		strings.Contains(lower, "quota exceeded")
}
