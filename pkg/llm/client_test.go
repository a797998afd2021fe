package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMapsProviderStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{429, ErrRateLimited},
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{400, ErrBadRequest},
		{422, ErrBadRequest},
		{500, ErrUnavailable},
		{503, ErrUnavailable},
	}
	for _, tc := range cases {
		err := classify(&openai.APIError{HTTPStatusCode: tc.status})
		assert.True(t, errors.Is(err, tc.want), "status %d", tc.status)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	assert.True(t, errors.Is(classify(context.DeadlineExceeded), ErrTimeout))
	// 调用方取消原样上抛，不当作供应商故障
	assert.True(t, errors.Is(classify(context.Canceled), context.Canceled))
}

func TestClassifyUnknownErrorIsUnavailable(t *testing.T) {
	err := classify(fmt.Errorf("connection refused"))
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRetryableOnlyForTransientErrors(t *testing.T) {
	assert.True(t, retryable(ErrRateLimited))
	assert.True(t, retryable(ErrTimeout))
	assert.True(t, retryable(ErrUnavailable))

	assert.False(t, retryable(ErrUnauthorized))
	assert.False(t, retryable(ErrBadRequest))
	assert.False(t, retryable(context.Canceled))
}

func TestBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backoff(ctx, 3)
	assert.True(t, errors.Is(err, context.Canceled))
}
