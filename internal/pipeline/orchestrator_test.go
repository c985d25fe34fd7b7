package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/internal/proxy"
)

func testPool(t *testing.T, threshold int, raws ...string) *proxy.Pool {
	t.Helper()
	endpoints := make([]proxy.Endpoint, 0, len(raws))
	for _, raw := range raws {
		ep, err := proxy.ParseEndpoint(raw)
		require.NoError(t, err)
		endpoints = append(endpoints, ep)
	}
	return proxy.NewPool(endpoints, proxy.WithBlacklistThreshold(threshold))
}

func TestAttempt_RetriesThenSucceeds(t *testing.T) {
	pool := testPool(t, 3, "p1.example.com:8080")
	o := NewOrchestrator(pool, 3)

	calls := 0
	out, failure, err := attempt(context.Background(), o, "UCdef", func(ctx context.Context, ep *proxy.Endpoint) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "about page", nil
	})

	require.NoError(t, err)
	assert.Nil(t, failure)
	assert.Equal(t, "about page", out)
	assert.Equal(t, 3, calls)

	// Exactly two failures were reported: one more reaches the threshold
	// of three and blacklists the only endpoint.
	ep, _ := proxy.ParseEndpoint("p1.example.com:8080")
	pool.ReportFailure(ep)
	_, ok := pool.Next(false)
	assert.False(t, ok)
}

func TestAttempt_Exhausted(t *testing.T) {
	o := NewOrchestrator(testPool(t, 5, "p1.example.com:8080"), 3)

	calls := 0
	out, failure, err := attempt(context.Background(), o, "v9", func(ctx context.Context, ep *proxy.Endpoint) (int, error) {
		calls++
		return 0, errors.New("timeout")
	})

	require.NoError(t, err)
	assert.Zero(t, out)
	assert.Equal(t, 3, calls)
	require.NotNil(t, failure)
	assert.Equal(t, model.FailureRecord{ID: "v9", Reason: model.FailureReasonRetries, Attempts: 3}, *failure)
}

func TestAttempt_RotatesAfterFailure(t *testing.T) {
	o := NewOrchestrator(testPool(t, 5, "p1.example.com:8080", "p2.example.com:8080"), 3)

	var seen []string
	_, failure, err := attempt(context.Background(), o, "UCdef", func(ctx context.Context, ep *proxy.Endpoint) (struct{}, error) {
		require.NotNil(t, ep)
		seen = append(seen, ep.Address)
		return struct{}{}, errors.New("challenge")
	})

	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, []string{"p1.example.com", "p2.example.com", "p1.example.com"}, seen)
}

func TestAttempt_EmptyPoolGoesDirect(t *testing.T) {
	o := NewOrchestrator(proxy.NewPool(nil), 3)

	out, failure, err := attempt(context.Background(), o, "UCdef", func(ctx context.Context, ep *proxy.Endpoint) (string, error) {
		assert.Nil(t, ep)
		return "direct", nil
	})

	require.NoError(t, err)
	assert.Nil(t, failure)
	assert.Equal(t, "direct", out)
}

func TestAttempt_ContextCanceled(t *testing.T) {
	o := NewOrchestrator(proxy.NewPool(nil), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, failure, err := attempt(ctx, o, "UCdef", func(ctx context.Context, ep *proxy.Endpoint) (string, error) {
		t.Fatal("attempt ran after cancellation")
		return "", nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, failure)
}
