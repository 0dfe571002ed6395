package recurrence

import (
	"log/slog"
	"time"
)

// EvaluationOptions tunes a single rule evaluation
type EvaluationOptions struct {
	// MaxUnmatchedIncrements is how many consecutive periods may produce no
	// occurrence before evaluation fails with ErrEvaluationLimit. Zero
	// disables the check.
	MaxUnmatchedIncrements int
	// NormalizationCache keeps normalized BY-values for the last period seen
	// instead of recomputing them for every candidate.
	NormalizationCache bool
}

// DefaultEvaluationOptions provides sensible defaults for rule evaluation
var DefaultEvaluationOptions = EvaluationOptions{
	MaxUnmatchedIncrements: 100_000,
	NormalizationCache:     true,
}

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// Performance tuning
	MaxOccurrences int // Maximum occurrences returned by one Expand call
	Concurrency    int // Components expanded in parallel by ExpandCalendar, 0 means GOMAXPROCS

	Evaluation EvaluationOptions
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxOccurrences: 10_000,

	Evaluation: DefaultEvaluationOptions,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},

	MaxOccurrences: 1000, // Fewer occurrences per expansion

	Evaluation: EvaluationOptions{
		MaxUnmatchedIncrements: 10_000,
		NormalizationCache:     true,
	},
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},

	MaxOccurrences: 500,
	Concurrency:    1, // One evaluation in memory at a time

	Evaluation: EvaluationOptions{
		MaxUnmatchedIncrements: 100_000,
		NormalizationCache:     false, // Recompute instead of holding per-period values
	},
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxOccurrences: 100_000, // More thorough without cache

	Evaluation: DefaultEvaluationOptions,
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for the engine and the evaluators it
// creates
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...EngineOption) *Engine {
	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}

	e := &Engine{
		cache:  cache,
		config: config,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
