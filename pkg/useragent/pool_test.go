package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if len(p.All()) != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), len(p.All()))
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Random()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}

	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B, got %v", seen)
	}
}

func TestPool_CopiesInput(t *testing.T) {
	uas := []string{"A"}
	p := NewPool(uas)
	uas[0] = "mutated"

	if got := p.Next(); got != "A" {
		t.Errorf("pool should not observe caller mutation, got %s", got)
	}

	all := p.All()
	all[0] = "mutated"
	if got := p.Next(); got != "A" {
		t.Errorf("All should return a copy, got %s", got)
	}
}

func TestPool_ConcurrentNext(t *testing.T) {
	p := NewPool([]string{"A", "B", "C", "D"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[string]int{}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ua := p.Next()
				mu.Lock()
				counts[ua]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, ua := range []string{"A", "B", "C", "D"} {
		if counts[ua] != 200 {
			t.Errorf("expected 200 uses of %s, got %d", ua, counts[ua])
		}
	}
}
