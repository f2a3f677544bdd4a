package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsWhenDone(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, nil, func() (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoReturnsTerminalError(t *testing.T) {
	terminal := errors.New("boom")
	calls := 0
	err := Do(context.Background(), 5, nil, func() (bool, error) {
		calls++
		if calls == 3 {
			return true, terminal
		}
		return false, nil
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 4, nil, func() (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDoAtLeastOneAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 0, nil, func() (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, 3, Linear(time.Hour), func() (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := Linear(20 * time.Millisecond)
	for attempt, want := range map[int]time.Duration{
		1: 20 * time.Millisecond,
		2: 40 * time.Millisecond,
		5: 100 * time.Millisecond,
	} {
		if got := b(attempt); got != want {
			t.Errorf("attempt %d: got %s, want %s", attempt, got, want)
		}
	}
}
