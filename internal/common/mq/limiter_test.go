package mq

import (
	"context"
	"testing"
	"time"
)

func TestTokenLimiterBoundsInFlight(t *testing.T) {
	t.Parallel()
	l := NewTokenLimiter(2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(blocked); err == nil {
		t.Fatal("third acquire should block until a release")
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestTokenLimiterAcquireHonorsCancel(t *testing.T) {
	t.Parallel()
	l := NewTokenLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("acquire returned nil after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancel")
	}
}
