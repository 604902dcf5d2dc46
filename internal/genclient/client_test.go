package genclient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/nhle/smart-onboard/internal/genclient"
	"github.com/nhle/smart-onboard/internal/genclient/genclienttest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want genclient.Kind
	}{
		{"api 404", genai.APIError{Code: 404, Message: "models/x is not found", Status: "NOT_FOUND"}, genclient.KindNotFound},
		{"api 429", genai.APIError{Code: 429, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED"}, genclient.KindQuota},
		{"api 403", genai.APIError{Code: 403, Message: "denied", Status: "PERMISSION_DENIED"}, genclient.KindAuth},
		{"api 400 invalid key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}, genclient.KindAuth},
		{"wrapped api error", fmt.Errorf("generate: %w", genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}), genclient.KindAuth},
		{"unregistered callers", errors.New("Method doesn't allow unregistered callers"), genclient.KindAuth},
		{"quota text", errors.New("You exceeded your current quota"), genclient.KindQuota},
		{"rate limit text", errors.New("rate limit reached"), genclient.KindQuota},
		{"not found text", errors.New("model gemini-x not found for API version v1"), genclient.KindNotFound},
		{"deadline", context.DeadlineExceeded, genclient.KindTimeout},
		{"not initialized", genclient.ErrNotInitialized, genclient.KindNotInitialized},
		{"generic", errors.New("connection reset by peer"), genclient.KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, genclient.Classify(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := genclient.Wrap(cause)

	var ce *genclient.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, genclient.KindQuota, ce.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, genclient.Wrap(err))
	assert.NoError(t, genclient.Wrap(nil))
}

func TestIsReinitTrigger(t *testing.T) {
	assert.True(t, genclient.IsReinitTrigger(genclient.ErrNotInitialized))
	assert.True(t, genclient.IsReinitTrigger(errors.New("HTTP 429")))
	assert.True(t, genclient.IsReinitTrigger(errors.New("model overloaded")))
	assert.True(t, genclient.IsReinitTrigger(genclient.Wrap(errors.New("404 Not Found"))))
	assert.False(t, genclient.IsReinitTrigger(errors.New("connection reset")))
	assert.False(t, genclient.IsReinitTrigger(nil))
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	f := genclienttest.NewFactory(genclienttest.Reply("hello"))
	f.Set("slow", genclienttest.Hang())

	m, err := f.NewModel(ctx, "key", "fast", genclient.Params{})
	require.NoError(t, err)
	text, err := genclient.Call(ctx, m, "hi", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	slow, err := f.NewModel(ctx, "key", "slow", genclient.Params{})
	require.NoError(t, err)
	start := time.Now()
	_, err = genclient.Call(ctx, slow, "hi", nil, 20*time.Millisecond)
	assert.ErrorIs(t, err, genclient.ErrTimeout)
	assert.Equal(t, genclient.KindTimeout, genclient.Classify(err))
	assert.Less(t, time.Since(start), time.Second)

	_, err = genclient.Call(ctx, nil, "hi", nil, time.Second)
	assert.ErrorIs(t, err, genclient.ErrNotInitialized)

	assert.Equal(t, 1, f.Calls("fast"))
	assert.Eventually(t, func() bool { return f.Calls("slow") == 1 }, time.Second, 5*time.Millisecond)
}
