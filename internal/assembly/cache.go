package assembly

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusReady   EntryStatus = "ready"
	StatusFailed  EntryStatus = "failed"
	StatusMissing EntryStatus = "missing"
)

// Key identifies one cached assembly: the session id when the caller has
// one, otherwise the user id, plus the topic.
type Key struct {
	Owner   string
	TopicID int64
}

func CacheKey(sessionID string, userID, topicID int64) Key {
	owner := sessionID
	if owner == "" {
		owner = fmt.Sprintf("u%d", userID)
	}
	return Key{Owner: owner, TopicID: topicID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Owner, k.TopicID)
}

// errCacheRace marks the should-not-happen case of an entry observed in a
// broken state; callers treat it as a miss and retry once.
var errCacheRace = errors.New("cache entry raced to an invalid state")

type entry struct {
	status    EntryStatus
	set       *models.AssembledSet
	err       error
	createdAt time.Time
	expiresAt time.Time
	done      chan struct{}
}

// Cache is the result cache: one assembly in flight per key, with observable
// PENDING/READY/FAILED status and time-based expiry. Ownership of a key is
// taken by an atomic check-and-set under the cache lock; every other caller
// for the same key waits on the owner's outcome. Failed assemblies are
// negative-cached briefly so a broken key is not re-attempted in a tight
// loop.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry

	assemble    AssembleFunc
	ttl         time.Duration
	negativeTTL time.Duration
}

// AssembleFunc is the cache's view of the orchestrator.
type AssembleFunc func(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error)

func NewCache(assemble AssembleFunc, ttl, negativeTTL time.Duration) *Cache {
	return &Cache{
		entries:     make(map[Key]*entry),
		assemble:    assemble,
		ttl:         ttl,
		negativeTTL: negativeTTL,
	}
}

// Status reports the current state of a key without touching it.
func (c *Cache) Status(key Key) EntryStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return StatusMissing
	}
	return e.status
}

// GetOrGenerate returns the assembled set for a key, running assembly at
// most once per key at a time. deadline bounds a fresh assembly; a READY
// hit returns immediately. cached reports whether the set came from a
// pre-generated entry.
func (c *Cache) GetOrGenerate(ctx context.Context, key Key, req models.GenerationRequest, deadline time.Duration) (set *models.AssembledSet, cached bool, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		set, cached, err = c.getOrGenerateOnce(ctx, key, req, deadline)
		if errors.Is(err, errCacheRace) {
			log.Printf("WARN: cache race on key %s, retrying as a miss", key)
			continue
		}
		return set, cached, err
	}
	return set, cached, err
}

func (c *Cache) getOrGenerateOnce(ctx context.Context, key Key, req models.GenerationRequest, deadline time.Duration) (*models.AssembledSet, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.expired(e) {
		delete(c.entries, key)
		e, ok = nil, false
	}
	if !ok {
		// Atomic check-and-set: this caller owns the PENDING->terminal
		// transition for the key.
		e = &entry{
			status:    StatusPending,
			createdAt: time.Now(),
			done:      make(chan struct{}),
		}
		c.entries[key] = e
		c.mu.Unlock()
		set, err := c.runOwned(key, e, req, deadline)
		return set, false, err
	}
	status := e.status
	c.mu.Unlock()

	switch status {
	case StatusPending:
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		fallthrough
	case StatusReady, StatusFailed:
		c.mu.Lock()
		defer c.mu.Unlock()
		switch e.status {
		case StatusReady:
			return e.set, true, nil
		case StatusFailed:
			return nil, false, e.err
		default:
			return nil, false, errCacheRace
		}
	default:
		return nil, false, errCacheRace
	}
}

// runOwned executes the assembly for an owned PENDING entry. The entry is
// always driven to READY or FAILED, panics included; a key stuck in
// PENDING would force every later test-start to ride out its own deadline.
func (c *Cache) runOwned(key Key, e *entry, req models.GenerationRequest, deadline time.Duration) (set *models.AssembledSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assembly panicked: %v", r)
			log.Printf("WARN: %v", err)
		}
		c.finalize(key, e, set, err)
	}()

	// Detached from the caller: an abandoned test-start request still
	// finishes and populates the cache for a retried call.
	actx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	return c.assemble(actx, req)
}

func (c *Cache) finalize(key Key, e *entry, set *models.AssembledSet, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.status != StatusPending {
		return
	}
	if err != nil {
		e.status = StatusFailed
		e.err = err
		e.expiresAt = time.Now().Add(c.negativeTTL)
	} else {
		e.status = StatusReady
		e.set = set
		e.expiresAt = time.Now().Add(c.ttl)
	}
	close(e.done)
}

// Consume removes a READY entry once a test attempt has taken ownership of
// its set. Pending entries are left alone.
func (c *Cache) Consume(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.status != StatusPending {
		delete(c.entries, key)
	}
}

// StartSweeper evicts expired terminal entries until ctx is canceled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("[cache] sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[cache] sweeper shutting down")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.status != StatusPending && c.expired(e) {
			delete(c.entries, key)
		}
	}
}

// expired is called with c.mu held.
func (c *Cache) expired(e *entry) bool {
	return e.status != StatusPending && time.Now().After(e.expiresAt)
}
