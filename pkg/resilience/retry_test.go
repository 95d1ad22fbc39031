package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "down", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("broker unreachable")
	})
	if err == nil {
		t.Fatal("no error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("fn ran %d times, want 2", calls)
	}
}

func TestRetryDefaultAttempts(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), "down", RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("still down")
	})
	if calls != 4 {
		t.Errorf("fn ran %d times, want the default 4 attempts", calls)
	}
}

func TestRetryAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "cancelled", RetryConfig{InitialDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("no error for a cancelled context")
	}
	if calls != 1 {
		t.Errorf("fn ran %d times after cancel, want 1", calls)
	}
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	fail := func() error { return errors.New("redis down") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); err == nil {
			t.Fatalf("attempt %d: expected failure to pass through", i)
		}
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v after threshold failures, want open", got)
	}
	if err := cb.Execute(fail); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit returned %v, want ErrCircuitOpen", err)
	}
}
