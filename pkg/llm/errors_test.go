package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{
			name:          "401 is auth, not retryable",
			err:           errors.New("API returned 401 Unauthorized"),
			wantType:      ErrorTypeAuth,
			wantRetryable: false,
		},
		{
			name:          "429 is rate limit, retryable",
			err:           errors.New("HTTP 429: too many requests"),
			wantType:      ErrorTypeRateLimit,
			wantRetryable: true,
		},
		{
			name:          "503 is endpoint, retryable",
			err:           errors.New("HTTP 503 service unavailable"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "connection refused is endpoint, retryable",
			err:           errors.New("dial tcp 127.0.0.1:11434: connection refused"),
			wantType:      ErrorTypeEndpoint,
			wantRetryable: true,
		},
		{
			name:          "model not found is permanent",
			err:           errors.New("model not found"),
			wantType:      ErrorTypeModel,
			wantRetryable: false,
		},
		{
			name:          "unknown is permanent",
			err:           errors.New("something odd"),
			wantType:      ErrorTypeUnknown,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.wantRetryable, classified.Retryable)
		})
	}
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeEndpoint, "boom", true, errors.New("cause"))
	classified := ClassifyError(orig)
	assert.Same(t, orig, classified)
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(ErrorTypeUnknown, "wrapped", false, cause)
	assert.ErrorIs(t, err, cause)
}
