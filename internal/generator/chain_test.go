package generator

import (
	"context"
	"errors"
	"testing"
)

func TestChainRun_HealthyBackendNeverAdvances(t *testing.T) {
	primary := NewMockBackend()
	fallback := NewMockBackend()
	run := NewChain(primary, fallback).Run()

	bundle := PromptBundle{Topic: "Cell Biology", BatchSize: 3}
	for i := 0; i < 4; i++ {
		cands, err := run.Generate(context.Background(), bundle)
		if err != nil {
			t.Fatalf("batch %d: expected no error, got: %v", i+1, err)
		}
		if len(cands) != 3 {
			t.Fatalf("batch %d: expected 3 candidates, got %d", i+1, len(cands))
		}
	}

	if run.Calls() != 4 {
		t.Errorf("expected 4 calls, got %d", run.Calls())
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback should never be called, got %d calls", fallback.CallCount())
	}
	if run.ActiveBackend() != "mock" {
		t.Errorf("expected active backend mock, got %q", run.ActiveBackend())
	}
}

func TestChainRun_RetriesOnceThenAdvances(t *testing.T) {
	primary := NewMockBackend()
	primary.Err = errors.New("upstream 503")
	fallback := NewMockBackend()
	run := NewChain(primary, fallback).Run()

	bundle := PromptBundle{Topic: "Cell Biology", BatchSize: 3}

	// First batch: primary fails, gets its one retry, then is dropped.
	if _, err := run.Generate(context.Background(), bundle); err == nil {
		t.Fatal("expected error from failing primary")
	}
	if primary.CallCount() != 2 {
		t.Errorf("expected primary called twice (initial + retry), got %d", primary.CallCount())
	}
	if run.Exhausted() {
		t.Fatal("chain should not be exhausted with a fallback remaining")
	}

	// Second batch lands on the fallback.
	cands, err := run.Generate(context.Background(), bundle)
	if err != nil {
		t.Fatalf("expected fallback to serve the batch, got: %v", err)
	}
	if len(cands) != 3 {
		t.Errorf("expected 3 candidates from fallback, got %d", len(cands))
	}
	if fallback.CallCount() != 1 {
		t.Errorf("expected 1 fallback call, got %d", fallback.CallCount())
	}
	if run.Calls() != 3 {
		t.Errorf("expected 3 total calls, got %d", run.Calls())
	}
}

func TestChainRun_Exhaustion(t *testing.T) {
	b := NewMockBackend()
	b.Err = errors.New("upstream down")
	run := NewChain(b).Run()

	_, err := run.Generate(context.Background(), PromptBundle{Topic: "Cell Biology", BatchSize: 3})
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *ErrBackendsExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ErrBackendsExhausted, got: %v", err)
	}
	if !run.Exhausted() {
		t.Error("run should report exhausted")
	}
	if run.ActiveBackend() != "" {
		t.Errorf("expected empty active backend, got %q", run.ActiveBackend())
	}

	// Further calls fail fast without touching the backend.
	before := b.CallCount()
	if _, err := run.Generate(context.Background(), PromptBundle{BatchSize: 3}); err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if b.CallCount() != before {
		t.Error("exhausted run should not issue backend calls")
	}
}

func TestChainRun_NoRetryOnCanceledContext(t *testing.T) {
	b := NewMockBackend()
	b.Err = errors.New("slow upstream")
	run := NewChain(b).Run()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := run.Generate(ctx, PromptBundle{Topic: "Cell Biology", BatchSize: 3}); err == nil {
		t.Fatal("expected error")
	}
	if b.CallCount() != 1 {
		t.Errorf("expected no retry on canceled context, got %d calls", b.CallCount())
	}
}

func TestChainRun_IndependentRuns(t *testing.T) {
	b := NewMockBackend()
	b.Err = errors.New("upstream down")
	chain := NewChain(b)

	run1 := chain.Run()
	if _, err := run1.Generate(context.Background(), PromptBundle{BatchSize: 3}); err == nil {
		t.Fatal("expected error")
	}
	if !run1.Exhausted() {
		t.Fatal("run1 should be exhausted")
	}

	// A fresh run starts back at the head of the chain.
	run2 := chain.Run()
	if run2.Exhausted() {
		t.Error("run2 should start fresh")
	}
	if run2.ActiveBackend() != "mock" {
		t.Errorf("expected run2 active backend mock, got %q", run2.ActiveBackend())
	}
}
