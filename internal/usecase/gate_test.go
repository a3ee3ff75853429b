package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"utmtrack/internal/domain"
)

func TestGate_IsAvailable(t *testing.T) {
	log, m := testDeps()
	binding := &fakeBinding{}
	gate := NewGate(binding, time.Millisecond, 3, log, m)

	if gate.IsAvailable() {
		t.Fatalf("IsAvailable() = true before binding is ready")
	}
	binding.available.Store(true)
	if !gate.IsAvailable() {
		t.Fatalf("IsAvailable() = false after binding is ready")
	}

	if NewGate(nil, time.Millisecond, 3, log, m).IsAvailable() {
		t.Fatalf("IsAvailable() = true with no binding")
	}
}

func TestGate_WaitForReady_Immediate(t *testing.T) {
	log, m := testDeps()
	binding := &fakeBinding{}
	binding.available.Store(true)
	gate := NewGate(binding, time.Hour, 100, log, m)

	if !gate.WaitForReady(context.Background()) {
		t.Fatalf("WaitForReady() = false, want true")
	}
	if gate.Readiness() != domain.ReadinessReady {
		t.Errorf("Readiness() = %s, want ready", gate.Readiness())
	}
}

func TestGate_WaitForReady_BecomesReady(t *testing.T) {
	log, m := testDeps()
	binding := &fakeBinding{}
	gate := NewGate(binding, 5*time.Millisecond, 1000, log, m)

	go func() {
		time.Sleep(30 * time.Millisecond)
		binding.available.Store(true)
	}()

	if !gate.WaitForReady(context.Background()) {
		t.Fatalf("WaitForReady() = false, want true")
	}
	if gate.Readiness() != domain.ReadinessReady {
		t.Errorf("Readiness() = %s, want ready", gate.Readiness())
	}
}

func TestGate_WaitForReady_Timeout(t *testing.T) {
	log, m := testDeps()
	gate := NewGate(&fakeBinding{}, time.Millisecond, 5, log, m)

	if gate.Readiness() != domain.ReadinessUnknown {
		t.Fatalf("initial Readiness() = %s, want not_checked", gate.Readiness())
	}

	start := time.Now()
	if gate.WaitForReady(context.Background()) {
		t.Fatalf("WaitForReady() = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("WaitForReady() returned after %v, before the attempt ceiling", elapsed)
	}
	if gate.Readiness() != domain.ReadinessFailed {
		t.Errorf("Readiness() = %s, want failed", gate.Readiness())
	}
}

func TestGate_ReadinessTransitionsOnce(t *testing.T) {
	log, m := testDeps()
	binding := &fakeBinding{}
	gate := NewGate(binding, time.Millisecond, 2, log, m)

	gate.WaitForReady(context.Background())
	binding.available.Store(true)
	if !gate.WaitForReady(context.Background()) {
		t.Fatalf("second WaitForReady() = false, want true")
	}

	if gate.Readiness() != domain.ReadinessFailed {
		t.Errorf("Readiness() = %s, want the first terminal state (failed)", gate.Readiness())
	}
}

func TestGate_WaitForReady_Cancelled(t *testing.T) {
	log, m := testDeps()
	gate := NewGate(&fakeBinding{}, 10*time.Millisecond, 1000, log, m)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	start := time.Now()
	if gate.WaitForReady(ctx) {
		t.Fatalf("WaitForReady() = true, want false")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
	if gate.Readiness() != domain.ReadinessUnknown {
		t.Errorf("Readiness() = %s after cancellation, want not_checked", gate.Readiness())
	}
}

func TestGate_ConcurrentWaiters(t *testing.T) {
	log, m := testDeps()
	binding := &fakeBinding{}
	gate := NewGate(binding, 2*time.Millisecond, 1000, log, m)

	const waiters = 8
	results := make([]bool, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.WaitForReady(context.Background())
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	binding.available.Store(true)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("waiter %d = false, want true", i)
		}
	}
}

func TestGate_WaitForReadyAsync(t *testing.T) {
	log, m := testDeps()
	gate := NewGate(&fakeBinding{}, time.Millisecond, 3, log, m)

	ch := gate.WaitForReadyAsync(context.Background())
	select {
	case ready, ok := <-ch:
		if !ok || ready {
			t.Fatalf("WaitForReadyAsync() delivered ready=%v ok=%v, want false true", ready, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitForReadyAsync() never resolved")
	}

	if _, ok := <-ch; ok {
		t.Errorf("channel not closed after delivering the result")
	}
}
