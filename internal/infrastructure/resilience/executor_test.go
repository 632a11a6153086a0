package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
		BreakerEnabled: false,
	}
}

func TestExecuteRetriesTemporaryFailures(t *testing.T) {
	ex := NewExecutor(fastConfig(), nil)

	calls := 0
	err := ex.Execute(context.Background(), "embed_batch", func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.WrapError(domain.ErrTemporary, "embed", fmt.Errorf("rate limited"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecuteDoesNotRetryPermanentFailures(t *testing.T) {
	ex := NewExecutor(fastConfig(), nil)

	calls := 0
	permanent := domain.WrapError(domain.ErrValidation, "embed", fmt.Errorf("bad input"))
	err := ex.Execute(context.Background(), "embed_batch", func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt for permanent failure, got %d", calls)
	}
}

func TestExecuteSurfacesLastErrorAfterExhaustion(t *testing.T) {
	ex := NewExecutor(fastConfig(), nil)

	calls := 0
	err := ex.Execute(context.Background(), "vector_search", func(context.Context) error {
		calls++
		return domain.WrapError(domain.ErrTemporary, "search", fmt.Errorf("attempt %d", calls))
	})
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}

func TestExecuteRespectsCancelledContext(t *testing.T) {
	ex := NewExecutor(fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ex.Execute(ctx, "embed_query", func(context.Context) error {
		t.Fatalf("callback must not run with cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.MaxAttempts = 1
	ex := NewExecutor(cfg, nil)

	boom := domain.WrapError(domain.ErrTemporary, "embed", fmt.Errorf("down"))
	for i := 0; i < 3; i++ {
		_ = ex.Execute(context.Background(), "embed_batch", func(context.Context) error {
			return boom
		})
	}

	err := ex.Execute(context.Background(), "embed_batch", func(context.Context) error {
		return nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}
