package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/nodeflow/errors"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Backoff:     Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2},
	}
}

func TestRetry(t *testing.T) {
	transient := stderrors.New("temporary")
	tests := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"first attempt", 3, 0, transient, 1, nil},
		{"after retries", 3, 2, transient, 3, nil},
		{"out of attempts", 3, 5, transient, 3, transient},
		{"single attempt", 1, 5, transient, 1, transient},
		{"non-retryable app error", 3, 5, errors.InvalidInput("x", "bad"), 1, nil},
		{"retryable app error", 3, 1, errors.Storage("open", transient), 2, nil},
		{"wrapped retryable app error", 3, 1, fmt.Errorf("open: %w", errors.Storage("open", transient)), 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := Retry(context.Background(), fastConfig(tt.attempts), func() (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.err
				}
				return "ok", nil
			})
			if calls != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr != nil && !stderrors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.failures < tt.wantCalls && (err != nil || v != "ok") {
				t.Fatalf("expected success, got %q %v", v, err)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := fastConfig(10)
	cfg.Backoff.Initial = time.Hour
	cfg.Backoff.Max = time.Hour
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := RetryFunc(ctx, cfg, func() error {
		calls++
		return stderrors.New("fail")
	})
	if !stderrors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected cancellation after one call, got %v after %d", err, calls)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }
	_ = RetryFunc(context.Background(), cfg, func() error { return stderrors.New("fail") })
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("expected OnRetry before attempts 2 and 3, got %v", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{stderrors.New("io"), true},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{errors.Storage("open", nil), true},
		{errors.NotFound("node", "a"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}

	b.Jitter = 0.5
	for i := 0; i < 20; i++ {
		if d := b.Delay(1); d < 5*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}
