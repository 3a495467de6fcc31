package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

// StatsSnapshot is the platform stats as of UpdatedAt.
type StatsSnapshot struct {
	Stats     rafflestore.PlatformStats
	UpdatedAt time.Time
}

// Cache is a thread-safe holder for the latest platform stats.
// Data can only be changed via UpdateStats.
type Cache struct {
	mu         sync.RWMutex
	stats      *StatsSnapshot
	lastUpdate time.Time
	logger     zerolog.Logger
}

// New creates an empty Cache.
func New(logger zerolog.Logger) *Cache {
	return &Cache{
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// LastUpdated returns the last time the cache was refreshed.
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// UpdateStats atomically replaces the cached stats.
func (c *Cache) UpdateStats(stats rafflestore.PlatformStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	c.stats = &StatsSnapshot{Stats: stats, UpdatedAt: now}
	c.lastUpdate = now

	c.logger.Debug().
		Int64("total_raffles", stats.TotalRaffles).
		Int64("active_raffles", stats.ActiveRaffles).
		Time("updated_at", now).
		Msg("stats cache updated")
}

// Stats returns a copy of the cached snapshot, or nil before the first update.
func (c *Cache) Stats() *StatsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil {
		return nil
	}
	cp := *c.stats
	return &cp
}

// IsStale reports whether the cache is empty or older than maxAge.
func (c *Cache) IsStale(maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats == nil || time.Since(c.lastUpdate) > maxAge
}
