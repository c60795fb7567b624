package composer

import (
	"strings"
	"time"
)

// nonRetryableIndicators mark generation errors that retrying cannot fix:
// exhausted quota, bad credentials, missing models and rejected input.
var nonRetryableIndicators = []string{
	"quota exceeded",
	"resource_exhausted",
	"authentication error",
	"invalid api key",
	"permission denied",
	"access denied",
	"model not found",
	"model error",
	"invalid input",
	"401",
	"403",
}

// IsRetryable reports whether a segment generation error is worth
// retrying. Matching is case-insensitive on the error message; unknown
// errors default to retryable.
func IsRetryable(errMsg string) bool {
	msg := strings.ToLower(errMsg)
	for _, indicator := range nonRetryableIndicators {
		if strings.Contains(msg, indicator) {
			return false
		}
	}
	return true
}

// backoffDelay returns the exponential backoff delay before retry
// attempt n (1-based): base*2^(n-1), capped.
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	delay := base << (attempt - 1)
	if delay > cap || delay <= 0 {
		return cap
	}
	return delay
}
