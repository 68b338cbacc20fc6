package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

// flaky fails transiently k times, then answers 42.
func flaky(k int, calls *int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		*calls++
		if *calls <= k {
			return 0, Transient(errRefused)
		}
		return 42, nil
	}
}

func fastPolicy(n int) Policy { return Policy{MaxAttempts: n, Backoff: time.Millisecond} }

func TestInvokeSucceedsBelowBound(t *testing.T) {
	calls, retries := 0, 0
	p := fastPolicy(5)
	p.OnRetry = func(int, error) { retries++ }
	v, err := Invoke(context.Background(), p, flaky(4, &calls))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 4, retries)
}

func TestInvokeExhaustsAtBound(t *testing.T) {
	calls := 0
	_, err := Invoke(context.Background(), fastPolicy(5), flaky(5, &calls))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted got %v", err)
	}
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 5, calls)
}

func TestInvokePermanentFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Invoke(context.Background(), fastPolicy(100), func(context.Context) (string, error) {
		calls++
		return "", errors.New("unknown procedure")
	})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected ErrPermanent got %v", err)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, IsFatal(err))

	calls = 0
	_, err = Invoke(context.Background(), fastPolicy(100), func(context.Context) (string, error) {
		calls++
		return "", Permanent(errors.New("bad endpoint"))
	})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, calls)
}

func TestInvokeSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Invoke(context.Background(), Policy{}, flaky(1, &calls))
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 1, calls)
}

func TestInvokeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 100, Backoff: 10 * time.Millisecond, OnRetry: func(n int, _ error) {
		if n == 2 {
			cancel()
		}
	}}
	_, err := Invoke(ctx, p, flaky(100, &calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 5)
}

func TestEndpoint(t *testing.T) {
	e := Endpoint{Address: "127.0.0.1", Port: 1117, Service: "matrix"}
	require.NoError(t, e.Validate())
	assert.Equal(t, "http://127.0.0.1:1117", e.URL())
	assert.Equal(t, "matrix@127.0.0.1:1117", e.String())
	assert.ErrorIs(t, Endpoint{Port: 1}.Validate(), ErrPermanent)
	assert.ErrorIs(t, Endpoint{Address: "h", Port: 70000}.Validate(), ErrPermanent)
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
}
