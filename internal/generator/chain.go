package generator

import (
	"context"
	"log"
	"sync"
)

// Chain holds the ordered backend fallback list. Each assembly opens its own
// Run so a backend that failed for one request is tried fresh by the next.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

// Run starts a new fallback cursor at the head of the chain.
func (c *Chain) Run() *ChainRun {
	return &ChainRun{backends: c.backends}
}

// ChainRun is the per-assembly fallback state. A backend gets one immediate
// retry on failure; after that the cursor advances and later batches go to
// the next backend. There is no further per-call retry.
//
// A run is safe for concurrent use: a call abandoned at the overall
// deadline may still be finishing in its own goroutine while the
// orchestrator reads the run's counters.
type ChainRun struct {
	mu       sync.Mutex
	backends []Backend
	active   int
	calls    int
}

// Calls reports how many batch calls this run has issued.
func (r *ChainRun) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Exhausted reports whether every backend in the chain has failed.
func (r *ChainRun) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active >= len(r.backends)
}

// ActiveBackend names the backend the next batch will use, or "" when
// exhausted.
func (r *ChainRun) ActiveBackend() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active >= len(r.backends) {
		return ""
	}
	return r.backends[r.active].Name()
}

// Generate issues one batch against the active backend. On failure it makes
// one immediate retry, then advances the cursor and returns the error; on a
// canceled context it returns immediately without retrying.
func (r *ChainRun) Generate(ctx context.Context, bundle PromptBundle) ([]Candidate, error) {
	r.mu.Lock()
	if r.active >= len(r.backends) {
		r.mu.Unlock()
		return nil, &ErrBackendsExhausted{}
	}
	idx := r.active
	b := r.backends[idx]
	r.calls++
	r.mu.Unlock()

	cands, err := b.Generate(ctx, bundle)
	if err == nil {
		return cands, nil
	}

	if ctx.Err() == nil {
		log.Printf("WARN: backend %s failed, retrying once: %v", b.Name(), err)
		r.mu.Lock()
		r.calls++
		r.mu.Unlock()
		cands, retryErr := b.Generate(ctx, bundle)
		if retryErr == nil {
			return cands, nil
		}
		err = retryErr
	}

	log.Printf("WARN: backend %s dropped from this run: %v", b.Name(), err)
	r.mu.Lock()
	if r.active == idx {
		r.active++
	}
	exhausted := r.active >= len(r.backends)
	r.mu.Unlock()

	if exhausted {
		return nil, &ErrBackendsExhausted{LastErr: err}
	}
	return nil, err
}
