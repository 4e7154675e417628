package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPause_DurationWithinRange(t *testing.T) {
	p := Pause{Min: 5 * time.Millisecond, Max: 15 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := p.Duration()
		if d < p.Min || d > p.Max {
			t.Fatalf("duration %v outside [%v, %v]", d, p.Min, p.Max)
		}
	}
}

func TestPause_ZeroValueDoesNotBlock(t *testing.T) {
	start := time.Now()
	if err := (Pause{}).Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("zero pause should not block")
	}
}

func TestPause_SwappedBounds(t *testing.T) {
	p := Pause{Min: 20 * time.Millisecond, Max: 10 * time.Millisecond}
	d := p.Duration()
	if d < 10*time.Millisecond || d > 20*time.Millisecond {
		t.Errorf("expected duration between 10ms and 20ms, got %v", d)
	}
}

func TestPause_Wait(t *testing.T) {
	p := Pause{Min: 20 * time.Millisecond, Max: 30 * time.Millisecond}

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected to wait at least 20ms, waited %v", elapsed)
	}
}

func TestPause_ContextCancellation(t *testing.T) {
	p := Pause{Min: time.Second, Max: 2 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected context canceled error")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("cancelled pause should return promptly")
	}
}
