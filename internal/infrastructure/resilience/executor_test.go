package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BreakerEnabled: false,
	}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	e := NewExecutor(fastPolicy())
	calls := 0

	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) Verdict { return Verdict{Retry: true, Count: true} })

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	e := NewExecutor(fastPolicy())
	calls := 0
	wantErr := errors.New("permanent")

	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	}, func(error) Verdict { return Verdict{Retry: false, Count: true} })

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the call error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestDoNeverRetriesContextCancellation(t *testing.T) {
	e := NewExecutor(fastPolicy())
	calls := 0

	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return context.Canceled
	}, func(error) Verdict { return Verdict{Retry: true, Count: true} })

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancellation must not be retried, got %d attempts", calls)
	}
}

func TestDoRespectsCanceledContextBeforeFirstAttempt(t *testing.T) {
	e := NewExecutor(fastPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	err := e.Do(ctx, "op", func(context.Context) error {
		calls++
		return nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("no attempt may run on a canceled context")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 3
	policy.BreakerFailureRatio = 0.5
	policy.BreakerOpenFor = time.Minute
	e := NewExecutor(policy)

	boom := errors.New("down")
	classify := func(error) Verdict { return Verdict{Count: true} }
	for i := 0; i < 3; i++ {
		_ = e.Do(context.Background(), "op", func(context.Context) error { return boom }, classify)
	}

	err := e.Do(context.Background(), "op", func(context.Context) error { return nil }, classify)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected an open circuit, got %v", err)
	}
}

func TestBreakerIgnoresUncountedErrors(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 2
	e := NewExecutor(policy)

	boom := errors.New("client fault")
	classify := func(error) Verdict { return Verdict{Count: false} }
	for i := 0; i < 10; i++ {
		_ = e.Do(context.Background(), "op", func(context.Context) error { return boom }, classify)
	}

	err := e.Do(context.Background(), "op", func(context.Context) error { return nil }, classify)
	if err != nil {
		t.Fatalf("uncounted errors must not trip the breaker, got %v", err)
	}
}
