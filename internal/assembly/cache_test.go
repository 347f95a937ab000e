package assembly

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

func testSet(topicID int64) *models.AssembledSet {
	return &models.AssembledSet{
		TopicID:         topicID,
		QuestionIDs:     []int64{1, 2, 3},
		HistoricalCount: 3,
	}
}

func TestCache_SingleFlight(t *testing.T) {
	var calls int32
	gate := make(chan struct{})
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return testSet(req.TopicID), nil
	}
	c := NewCache(assemble, time.Minute, time.Second)
	key := CacheKey("sess-1", 0, 7)
	req := models.GenerationRequest{TopicID: 7, Count: 3}

	const waiters = 10
	var wg sync.WaitGroup
	results := make([]*models.AssembledSet, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, _, err := c.GetOrGenerate(context.Background(), key, req, time.Second)
			results[i], errs[i] = set, err
		}(i)
	}

	// Let every goroutine reach the cache before the assembly completes.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly 1 assembly call, got %d", n)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: unexpected error: %v", i, errs[i])
		}
		if results[i] == nil || results[i].TopicID != 7 {
			t.Fatalf("waiter %d: wrong set: %+v", i, results[i])
		}
	}
}

func TestCache_ReadyHitSkipsAssembly(t *testing.T) {
	var calls int32
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		atomic.AddInt32(&calls, 1)
		return testSet(req.TopicID), nil
	}
	c := NewCache(assemble, time.Minute, time.Second)
	key := CacheKey("", 42, 7)
	req := models.GenerationRequest{TopicID: 7, UserID: 42, Count: 3}

	if _, cached, err := c.GetOrGenerate(context.Background(), key, req, time.Second); err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	if _, cached, err := c.GetOrGenerate(context.Background(), key, req, time.Second); err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 assembly call, got %d", n)
	}
	if got := c.Status(key); got != StatusReady {
		t.Errorf("expected ready status, got %s", got)
	}
}

func TestCache_FailureNegativeCached(t *testing.T) {
	var calls int32
	boom := errors.New("assembly failed")
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}
	c := NewCache(assemble, time.Minute, 40*time.Millisecond)
	key := CacheKey("sess-2", 0, 7)
	req := models.GenerationRequest{TopicID: 7, Count: 3}

	if _, _, err := c.GetOrGenerate(context.Background(), key, req, time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected assembly error, got: %v", err)
	}
	if got := c.Status(key); got != StatusFailed {
		t.Fatalf("expected failed status, got %s", got)
	}

	// Inside the negative TTL the failure is served from the cache.
	if _, _, err := c.GetOrGenerate(context.Background(), key, req, time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected cached failure, got: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 assembly call inside negative TTL, got %d", n)
	}

	// After expiry the key is retried.
	time.Sleep(60 * time.Millisecond)
	if _, _, err := c.GetOrGenerate(context.Background(), key, req, time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected fresh failure, got: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected retry after negative TTL, got %d calls", n)
	}
}

func TestCache_ConsumeRemovesReadyEntry(t *testing.T) {
	var calls int32
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		atomic.AddInt32(&calls, 1)
		return testSet(req.TopicID), nil
	}
	c := NewCache(assemble, time.Minute, time.Second)
	key := CacheKey("sess-3", 0, 7)
	req := models.GenerationRequest{TopicID: 7, Count: 3}

	if _, _, err := c.GetOrGenerate(context.Background(), key, req, time.Second); err != nil {
		t.Fatal(err)
	}
	c.Consume(key)

	if got := c.Status(key); got != StatusMissing {
		t.Fatalf("expected missing after consume, got %s", got)
	}
	if _, cached, err := c.GetOrGenerate(context.Background(), key, req, time.Second); err != nil || cached {
		t.Fatalf("expected fresh assembly after consume: cached=%v err=%v", cached, err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 assembly calls, got %d", n)
	}
}

func TestCache_PanicBecomesFailed(t *testing.T) {
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		panic("assembly blew up")
	}
	c := NewCache(assemble, time.Minute, time.Minute)
	key := CacheKey("sess-4", 0, 7)

	_, _, err := c.GetOrGenerate(context.Background(), key, models.GenerationRequest{TopicID: 7}, time.Second)
	if err == nil {
		t.Fatal("expected error from panicking assembly")
	}
	if got := c.Status(key); got != StatusFailed {
		t.Errorf("expected failed status after panic, got %s", got)
	}
}

func TestCache_WaiterHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		<-gate
		return testSet(req.TopicID), nil
	}
	c := NewCache(assemble, time.Minute, time.Second)
	key := CacheKey("sess-5", 0, 7)
	req := models.GenerationRequest{TopicID: 7, Count: 3}

	go c.GetOrGenerate(context.Background(), key, req, time.Second)
	for c.Status(key) != StatusPending {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrGenerate(ctx, key, req, time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error for abandoned waiter, got: %v", err)
	}

	// The owner still finishes and populates the cache.
	close(gate)
	deadline := time.Now().Add(time.Second)
	for c.Status(key) != StatusReady {
		if time.Now().After(deadline) {
			t.Fatal("owner never reached ready")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCacheKey_FallsBackToUser(t *testing.T) {
	withSession := CacheKey("sess-9", 42, 7)
	if withSession.Owner != "sess-9" {
		t.Errorf("expected session owner, got %q", withSession.Owner)
	}

	withoutSession := CacheKey("", 42, 7)
	if withoutSession.Owner != "u42" {
		t.Errorf("expected user fallback owner, got %q", withoutSession.Owner)
	}
}

func TestCache_SweepEvictsExpired(t *testing.T) {
	assemble := func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
		return testSet(req.TopicID), nil
	}
	c := NewCache(assemble, 20*time.Millisecond, time.Second)
	key := CacheKey("sess-6", 0, 7)

	if _, _, err := c.GetOrGenerate(context.Background(), key, models.GenerationRequest{TopicID: 7}, time.Second); err != nil {
		t.Fatal(err)
	}

	time.Sleep(40 * time.Millisecond)
	c.sweep()

	if got := c.Status(key); got != StatusMissing {
		t.Errorf("expected missing after sweep, got %s", got)
	}
}
