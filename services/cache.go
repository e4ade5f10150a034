package services

import (
	"sync"
	"time"

	"habit-challenge-system/models"

	"github.com/jonboulle/clockwork"
)

// ChallengeCache is a read-through TTL cache for challenge snapshots
// (challenge + tasks), keyed by challenge id. Side-channel optimization for
// the read surface only: every mutating path goes straight to storage and
// invalidates here, so the engine stays correct with the cache disabled.
// Cached values are shared; callers must treat them as read-only.
type ChallengeCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   clockwork.Clock
	entries map[uint]challengeCacheEntry
}

type challengeCacheEntry struct {
	challenge *models.Challenge
	expiresAt time.Time
}

func NewChallengeCache(ttl time.Duration, clock clockwork.Clock) *ChallengeCache {
	return &ChallengeCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[uint]challengeCacheEntry),
	}
}

// Get returns the cached snapshot or loads, stores and returns a fresh one.
// Load errors are never cached.
func (c *ChallengeCache) Get(id uint, load func(uint) (*models.Challenge, error)) (*models.Challenge, error) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.challenge, nil
	}

	challenge, err := load(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = challengeCacheEntry{challenge: challenge, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return challenge, nil
}

// Invalidate drops a snapshot. Called next to every mutation that changes
// the challenge or its tasks.
func (c *ChallengeCache) Invalidate(id uint) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
