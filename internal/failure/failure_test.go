package failure

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &NetworkError{URL: "u", Cause: io.EOF}, true},
		{"wrapped network", errors.Wrap(&NetworkError{URL: "u", Cause: io.EOF}, "page 2"), true},
		{"server status", &StatusError{URL: "u", StatusCode: 500}, true},
		{"missing page", &StatusError{URL: "u", StatusCode: 404}, false},
		{"rate limit", &RateLimitError{URL: "u", Reason: "429"}, true},
		{"parse", &ParseError{URL: "u", Message: "no sections"}, false},
		{"config", &ConfigError{Field: "listing_url", Message: "missing"}, false},
		{"plain", io.EOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsConfig(errors.Wrap(&ConfigError{Message: "bad"}, "load")))
	assert.True(t, IsParse(&ParseError{URL: "u", Message: "m", Cause: io.EOF}))
	assert.True(t, IsRateLimit(errors.WithStack(&RateLimitError{URL: "u"})))
	assert.False(t, IsParse(io.EOF))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "config error: listing_url: missing", (&ConfigError{Field: "listing_url", Message: "missing"}).Error())
	assert.Contains(t, (&ParseError{URL: "u", Message: "m", Cause: io.EOF}).Error(), "EOF")
	assert.ErrorIs(t, &NetworkError{URL: "u", Cause: io.EOF}, io.EOF)
}
