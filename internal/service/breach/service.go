package breach

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/pkg/hibp"
	"github.com/jwalitptl/risk-api/pkg/kvstore"
	"github.com/jwalitptl/risk-api/pkg/logger"
	"github.com/jwalitptl/risk-api/pkg/metrics"
)

const (
	DefaultCacheTTL = time.Hour
	cacheKeyPrefix  = "breach:"

	OutcomeHit      = "hit"
	OutcomeClean    = "miss_clean"
	OutcomeBreached = "miss_breached"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
)

// RangeLookup fetches every suffix sharing a 5-character digest prefix.
type RangeLookup interface {
	Range(ctx context.Context, prefix string) (map[string]int, error)
}

var _ RangeLookup = (*hibp.Client)(nil)

type Config struct {
	CacheTTL time.Duration
}

// Service answers "has this password appeared in a breach" and never fails the caller:
// lookup errors resolve to an unverified clean result that is not cached.
type Service struct {
	lookup  RangeLookup
	cache   kvstore.Store
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(lookup RangeLookup, cache kvstore.Store, config Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		lookup:  lookup,
		cache:   cache,
		ttl:     config.CacheTTL,
		logger:  log.With("breach"),
		metrics: m,
		now:     time.Now,
	}
}

// Digest returns the upper-case hex SHA-1 of password. SHA-1 is what the range protocol keys on;
// it is never used for credential storage.
func Digest(password string) string {
	sum := sha1.Sum([]byte(password))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Check looks password up, serving from cache when a fresh entry exists.
func (s *Service) Check(ctx context.Context, password string) model.BreachResult {
	if password == "" {
		return model.BreachResult{}
	}

	digest := Digest(password)
	prefix, suffix := digest[:hibp.PrefixLength], digest[hibp.PrefixLength:]

	if res, ok := s.fromCache(ctx, digest); ok {
		s.observe(OutcomeHit)
		return res
	}

	start := time.Now()
	suffixes, err := s.lookup.Range(ctx, prefix)
	if s.metrics != nil {
		s.metrics.BreachLookupLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.observe(OutcomeStale)
			s.logger.Debug("breach lookup cancelled", "prefix", prefix)
		} else {
			s.observe(OutcomeError)
			s.logger.Error(err, "breach lookup failed, assuming not breached", "prefix", prefix)
		}
		return model.BreachResult{}
	}

	count := suffixes[suffix]
	entry := model.BreachCacheEntry{
		HashPrefixKey:   prefix,
		OccurrenceCount: count,
		CachedAt:        s.now().UTC(),
	}
	if err := kvstore.SetJSON(ctx, s.cache, cacheKeyPrefix+digest, entry, s.ttl); err != nil {
		s.storeError("set", err)
	}

	if count > 0 {
		s.observe(OutcomeBreached)
	} else {
		s.observe(OutcomeClean)
	}
	return model.BreachResult{Breached: count > 0, Count: count, Verified: true}
}

func (s *Service) fromCache(ctx context.Context, digest string) (model.BreachResult, bool) {
	var entry model.BreachCacheEntry
	found, err := kvstore.GetJSON(ctx, s.cache, cacheKeyPrefix+digest, &entry)
	if err != nil {
		s.storeError("get", err)
		return model.BreachResult{}, false
	}
	if !found || s.now().Sub(entry.CachedAt) >= s.ttl {
		return model.BreachResult{}, false
	}
	return model.BreachResult{
		Breached: entry.OccurrenceCount > 0,
		Count:    entry.OccurrenceCount,
		Verified: true,
		Cached:   true,
	}, true
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.BreachLookups.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) storeError(op string, err error) {
	s.logger.Error(err, "breach cache unavailable", "operation", op)
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}
