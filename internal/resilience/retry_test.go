package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := Do(context.Background(), FetchRetryConfig(2), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected ok, got %q", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	val, err := Do(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("temporary"), 503)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	_, err := Do(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
	}

	_, err := Do(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-transient), got %d", calls)
	}
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	_, err := Do(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// Should stop after cancel (2 calls max).
	if calls > 3 {
		t.Errorf("expected <= 3 calls after cancel, got %d", calls)
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		ShouldRetry: func(err error) bool {
			return err.Error() == "retry me"
		},
	}

	_, err := Do(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("retry me")
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var retries []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		OnRetry: func(attempt int, _ error) {
			retries = append(retries, attempt)
		},
	}

	_, _ = Do(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("fail"), 503)
	})
	if len(retries) != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", len(retries))
	}
	if retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", retries)
	}
}

func TestFetchRetryConfig_Defaults(t *testing.T) {
	cfg := FetchRetryConfig(0)
	if cfg.MaxAttempts != 2 {
		t.Errorf("expected default 2 attempts, got %d", cfg.MaxAttempts)
	}
	cfg = FetchRetryConfig(3)
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.MaxAttempts)
	}
}

func TestComputeBackoff_Caps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10.0,
		JitterFraction: 0,
	})
	if got := computeBackoff(5, cfg); got > 2*time.Second {
		t.Errorf("backoff exceeds cap: %v", got)
	}
}
