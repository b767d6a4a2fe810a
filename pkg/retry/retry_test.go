package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts:        attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name             string
		failures         int
		permanent        bool
		attempts         int
		expectError      bool
		expectedAttempts int
	}{
		{
			name:             "succeeds first time",
			failures:         0,
			attempts:         3,
			expectedAttempts: 1,
		},
		{
			name:             "succeeds on last attempt",
			failures:         2,
			attempts:         3,
			expectedAttempts: 3,
		},
		{
			name:             "exhausts attempts",
			failures:         10,
			attempts:         3,
			expectError:      true,
			expectedAttempts: 3,
		},
		{
			name:             "permanent error stops immediately",
			failures:         10,
			permanent:        true,
			attempts:         3,
			expectError:      true,
			expectedAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			n, err := Do(context.Background(), fastPolicy(tt.attempts), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errFlaky)
					}
					return errFlaky
				}
				return nil
			}, nil)

			if tt.expectError && err == nil {
				t.Fatal("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectError && !errors.Is(err, errFlaky) {
				t.Errorf("Expected wrapped errFlaky, got %v", err)
			}
			if n != tt.expectedAttempts || calls != tt.expectedAttempts {
				t.Errorf("Expected %d attempts, got n=%d calls=%d", tt.expectedAttempts, n, calls)
			}
		})
	}
}

func TestDoNotify(t *testing.T) {
	var seen []int
	_, err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		return errFlaky
	}, func(attempt int, err error, wait time.Duration) {
		seen = append(seen, attempt)
		if wait > 2*time.Millisecond {
			t.Errorf("Wait %s exceeds cap", wait)
		}
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(seen) != 2 {
		t.Errorf("Expected 2 notifications, got %v", seen)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := fastPolicy(5)
	p.InitialInterval = time.Second
	calls := 0
	_, err := Do(ctx, p, func(context.Context) error {
		calls++
		return errFlaky
	}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls > 1 {
		t.Errorf("Expected at most one call after cancellation, got %d", calls)
	}
}
