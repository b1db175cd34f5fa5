package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClient) Generate(_ context.Context, _ GenerateRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("read tcp: i/o timeout")}
	client := WithRetry(inner, fastRetry())

	text, err := client.Generate(context.Background(), GenerateRequest{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("tls handshake timeout")}
	client := WithRetry(inner, fastRetry())

	_, err := client.Generate(context.Background(), GenerateRequest{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("invalid api key")}
	client := WithRetry(inner, fastRetry())

	_, err := client.Generate(context.Background(), GenerateRequest{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyClient{failures: 10, err: errors.New("i/o timeout")}
	client := WithRetry(inner, fastRetry())

	_, err := client.Generate(ctx, GenerateRequest{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestIsTransientPatterns(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("permission denied")))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
	assert.True(t, isTransient(errors.New("dial tcp: no such host")))
}
