package model

import "time"

// BreachResult is the outcome of a k-anonymity breach lookup. Verified is false when the lookup
// failed and the result is the fail-open default.
type BreachResult struct {
	Breached bool `json:"breached"`
	Count    int  `json:"count"`
	Verified bool `json:"verified"`
	Cached   bool `json:"cached"`
}

// BreachCacheEntry is what the breach cache stores under the full digest.
type BreachCacheEntry struct {
	HashPrefixKey   string    `json:"hash_prefix_key"`
	OccurrenceCount int       `json:"occurrence_count"`
	CachedAt        time.Time `json:"cached_at"`
}
