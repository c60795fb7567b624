package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"quota", "error 429: Quota exceeded for requests", false},
		{"resource exhausted", "rpc error: RESOURCE_EXHAUSTED", false},
		{"auth", "Authentication error: token expired", false},
		{"invalid key", "request failed: invalid API key provided", false},
		{"permission", "Permission denied on model", false},
		{"access denied", "access denied", false},
		{"model not found", "model not found: veo-99", false},
		{"model error", "model error: unsupported duration", false},
		{"invalid input", "invalid input: prompt too long", false},
		{"401", "request failed with status 401", false},
		{"403", "request failed with status 403", false},
		{"timeout", "video generation timed out after 10m0s", true},
		{"network", "connection reset by peer", true},
		{"server error", "request failed with status 503", true},
		{"unknown", "something unexpected happened", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.msg))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 5 * time.Second
	cap := 30 * time.Second

	assert.Equal(t, 5*time.Second, backoffDelay(1, base, cap))
	assert.Equal(t, 10*time.Second, backoffDelay(2, base, cap))
	assert.Equal(t, 20*time.Second, backoffDelay(3, base, cap))
	assert.Equal(t, 30*time.Second, backoffDelay(4, base, cap))
	assert.Equal(t, 30*time.Second, backoffDelay(10, base, cap))
}
