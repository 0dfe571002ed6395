package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Cache operations. Results of different operations never share a key.
const (
	opExpand        = "expand"
	opHasOccurrence = "has-occurrence"
)

// CacheEntry represents a cached recurrence result
type CacheEntry struct {
	Result     any // bool for HasOccurrenceInRange, []TimeOccurrence for Expand
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// RecurrenceCache caches expansion results keyed by every input that can
// change them. Entries expire after a TTL; when the cache is full the least
// recently read entries are evicted first.
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once

	hits   uint64
	misses uint64
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute, // Cache results for 15 minutes
	MaxEntries:      1000,             // Keep up to 1000 cached results
	CleanupInterval: 5 * time.Minute,  // Cleanup every 5 minutes
}

// NewRecurrenceCache creates a new recurrence cache with the given
// configuration. Zero fields fall back to DefaultCacheConfig.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// generateCacheKey hashes the operation and all of its inputs. Instants are
// written with their location name so that the same instant in two zones,
// which expands differently, gets two keys.
func (c *RecurrenceCache) generateCacheKey(operation string, masterStart, masterEnd time.Time, recInfo RecurrenceInfo, rangeStart, rangeEnd time.Time) string {
	hasher := sha256.New()
	write := func(s string) {
		hasher.Write([]byte(s))
		hasher.Write([]byte{0})
	}
	writeTime := func(t time.Time) {
		write(t.Format(time.RFC3339Nano))
		write(t.Location().String())
	}

	write(operation)
	writeTime(masterStart)
	writeTime(masterEnd)
	writeTime(rangeStart)
	writeTime(rangeEnd)

	write(recInfo.RRULE)
	write(strconv.FormatBool(recInfo.AllDay))

	write("RDATE")
	for _, rdate := range recInfo.RDATE {
		writeTime(rdate)
	}
	write("EXDATE")
	for _, exdate := range recInfo.EXDATE {
		writeTime(exdate)
	}
	if recInfo.RecurrenceID != nil {
		write("RECURRENCE-ID")
		writeTime(*recInfo.RecurrenceID)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(operation string, masterStart, masterEnd time.Time, recInfo RecurrenceInfo, rangeStart, rangeEnd time.Time) (any, bool) {
	key := c.generateCacheKey(operation, masterStart, masterEnd, recInfo, rangeStart, rangeEnd)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.AccessedAt = now
	c.hits++
	return entry.Result, true
}

// Set stores a result in the cache
func (c *RecurrenceCache) Set(operation string, masterStart, masterEnd time.Time, recInfo RecurrenceInfo, rangeStart, rangeEnd time.Time, result any) {
	key := c.generateCacheKey(operation, masterStart, masterEnd, recInfo, rangeStart, rangeEnd)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Result:     result,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup(now)
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// until the cache fits. Callers hold the write lock.
func (c *RecurrenceCache) cleanup(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAccess := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAccess = append(byAccess, keyAccess{key, entry.AccessedAt})
	}
	slices.SortFunc(byAccess, func(a, b keyAccess) int {
		return a.accessedAt.Compare(b.accessedAt)
	})

	for _, ka := range byAccess[:excess] {
		delete(c.entries, ka.key)
	}
}

// cleanupLoop runs periodic cleanup
func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.mutex.Lock()
			c.cleanup(now)
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call
// more than once.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
		Hits:           c.hits,
		Misses:         c.misses,
	}
}

// CacheStats provides information about cache performance
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           uint64
	Misses         uint64
}
