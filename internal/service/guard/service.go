// Package guard tracks failed logins per identifier and escalates through alerts and
// suspicious-origin marks as failures accumulate.
package guard

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/service/alert"
	"github.com/jwalitptl/risk-api/pkg/kvstore"
	"github.com/jwalitptl/risk-api/pkg/logger"
	"github.com/jwalitptl/risk-api/pkg/metrics"
)

const (
	DefaultWarnThreshold     = 3
	DefaultEscalateThreshold = 5
	DefaultCriticalThreshold = 10
	DefaultWindow            = 15 * time.Minute
	DefaultOriginTTL         = 24 * time.Hour

	counterKeyPrefix = "login:"
	originKeyPrefix  = "origin:"
	flagsKeyPrefix   = "flags:"
	lockStripes      = 64
)

type Config struct {
	WarnThreshold     int
	EscalateThreshold int
	CriticalThreshold int
	Window            time.Duration
	OriginTTL         time.Duration
}

func (c Config) withDefaults() Config {
	if c.WarnThreshold <= 0 {
		c.WarnThreshold = DefaultWarnThreshold
	}
	if c.EscalateThreshold <= 0 {
		c.EscalateThreshold = DefaultEscalateThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = DefaultCriticalThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.OriginTTL <= 0 {
		c.OriginTTL = DefaultOriginTTL
	}
	return c
}

// Service is the login attempt guard. Counter updates for one identifier are serialised
// within a process; across instances the shared store gives last-writer-wins semantics.
type Service struct {
	store    kvstore.Store
	notifier alert.Notifier
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// counter locks are always taken before origin locks
	counterLocks [lockStripes]sync.Mutex
	originLocks  [lockStripes]sync.Mutex
}

func NewService(store kvstore.Store, notifier alert.Notifier, config Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		config:   config.withDefaults(),
		logger:   log.With("guard"),
		metrics:  m,
		now:      time.Now,
	}
}

func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// hashKey keeps raw identifiers and addresses out of the store, in keys and in values.
func hashKey(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func counterKey(identifier string) string { return counterKeyPrefix + hashKey(identifier) }
func flagsKey(identifier string) string   { return flagsKeyPrefix + hashKey(identifier) }
func originKey(origin string) string      { return originKeyPrefix + hashKey(origin) }

func lockStripe(locks *[lockStripes]sync.Mutex, key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// RecordFailure counts a failed login. Alerts fire only when a threshold is crossed, so
// repeated failures past a threshold do not repeat its alert.
func (s *Service) RecordFailure(ctx context.Context, identifier, origin string) model.LoginAttemptStatus {
	id := Normalize(identifier)
	origin = Normalize(origin)
	if id == "" {
		return s.cleanStatus(identifier)
	}
	s.count(func(m *metrics.Metrics) { m.LoginFailures.Inc() })

	key := counterKey(id)
	unlock := lockStripe(&s.counterLocks, key)
	defer unlock()

	counter, ok := s.loadCounter(ctx, key)
	if !ok {
		return s.cleanStatus(identifier)
	}

	now := s.now()
	if counter.FailureCount == 0 {
		counter.FirstFailure = now
	}
	counter.FailureCount++
	counter.LastFailure = now

	if counter.FailureCount >= s.config.EscalateThreshold && origin != "" {
		if s.markOrigin(ctx, origin, hashKey(id), now) {
			s.addFlag(ctx, id, hashKey(origin), now)
		}
	}

	if err := kvstore.SetJSON(ctx, s.store, key, counter, s.config.Window); err != nil {
		s.storeError("set_counter", err)
	}

	s.escalate(identifier, origin, counter.FailureCount)
	return s.status(identifier, counter)
}

// RecordSuccess clears the identifier's counter and withdraws its own suspicious-origin marks.
// Marks placed by other identifiers stay.
func (s *Service) RecordSuccess(ctx context.Context, identifier string) model.LoginAttemptStatus {
	id := Normalize(identifier)
	if id == "" {
		return s.cleanStatus(identifier)
	}
	s.count(func(m *metrics.Metrics) { m.LoginSuccesses.Inc() })

	key := counterKey(id)
	unlock := lockStripe(&s.counterLocks, key)
	defer unlock()

	flags := &model.OriginFlags{}
	found, err := kvstore.GetJSON(ctx, s.store, flagsKey(id), flags)
	if err != nil {
		s.storeError("get_flags", err)
	}
	if found {
		for _, hashed := range flags.Origins {
			s.unmarkOrigin(ctx, originKeyPrefix+hashed, hashKey(id))
		}
		if err := s.store.Delete(ctx, flagsKey(id)); err != nil {
			s.storeError("delete_flags", err)
		}
	}

	if err := s.store.Delete(ctx, key); err != nil {
		s.storeError("delete_counter", err)
	}
	return s.cleanStatus(identifier)
}

// IsOriginSuspicious is a read-only lookup. Store errors answer false.
func (s *Service) IsOriginSuspicious(ctx context.Context, origin string) bool {
	origin = Normalize(origin)
	if origin == "" {
		return false
	}
	_, found := s.loadOrigin(ctx, originKey(origin))
	return found
}

func (s *Service) Status(ctx context.Context, identifier string) model.LoginAttemptStatus {
	id := Normalize(identifier)
	if id == "" {
		return s.cleanStatus(identifier)
	}
	counter, ok := s.loadCounter(ctx, counterKey(id))
	if !ok {
		return s.cleanStatus(identifier)
	}
	return s.status(identifier, counter)
}

// ClearOrigin removes a suspicious mark regardless of who placed it.
func (s *Service) ClearOrigin(ctx context.Context, origin string) error {
	origin = Normalize(origin)
	if origin == "" {
		return fmt.Errorf("origin is required")
	}
	key := originKey(origin)
	unlock := lockStripe(&s.originLocks, key)
	defer unlock()

	if err := s.store.Delete(ctx, key); err != nil {
		s.storeError("delete_origin", err)
		return fmt.Errorf("failed to clear origin: %w", err)
	}
	s.logger.Info("suspicious origin cleared", "origin", origin)
	return nil
}

// loadCounter returns the live counter for key. ok is false when the store failed, in which
// case callers answer clean and leave the stored state alone.
func (s *Service) loadCounter(ctx context.Context, key string) (*model.LoginAttemptCounter, bool) {
	counter := &model.LoginAttemptCounter{}
	found, err := kvstore.GetJSON(ctx, s.store, key, counter)
	if err != nil {
		s.storeError("get_counter", err)
		return nil, false
	}
	if !found || s.now().Sub(counter.LastFailure) > s.config.Window {
		return &model.LoginAttemptCounter{}, true
	}
	return counter, true
}

func (s *Service) loadOrigin(ctx context.Context, key string) (*model.SuspiciousOrigin, bool) {
	record := &model.SuspiciousOrigin{}
	found, err := kvstore.GetJSON(ctx, s.store, key, record)
	if err != nil {
		s.storeError("get_origin", err)
		return nil, false
	}
	if !found || s.now().Sub(record.FlaggedAt) > s.config.OriginTTL {
		return nil, false
	}
	return record, true
}

func (s *Service) markOrigin(ctx context.Context, origin, flaggedBy string, now time.Time) bool {
	key := originKey(origin)
	unlock := lockStripe(&s.originLocks, key)
	defer unlock()

	record, found := s.loadOrigin(ctx, key)
	if !found {
		record = &model.SuspiciousOrigin{}
		s.count(func(m *metrics.Metrics) { m.OriginsFlagged.Inc() })
		s.logger.Warn("origin marked suspicious", "origin", origin)
	}
	if !slices.Contains(record.FlaggedBy, flaggedBy) {
		record.FlaggedBy = append(record.FlaggedBy, flaggedBy)
	}
	record.FlaggedAt = now

	if err := kvstore.SetJSON(ctx, s.store, key, record, s.config.OriginTTL); err != nil {
		s.storeError("set_origin", err)
		return false
	}
	return true
}

// addFlag records hashedOrigin against the identifier. Callers hold the identifier's counter lock.
func (s *Service) addFlag(ctx context.Context, id, hashedOrigin string, now time.Time) {
	key := flagsKey(id)
	flags := &model.OriginFlags{}
	if _, err := kvstore.GetJSON(ctx, s.store, key, flags); err != nil {
		s.storeError("get_flags", err)
		return
	}
	if !slices.Contains(flags.Origins, hashedOrigin) {
		flags.Origins = append(flags.Origins, hashedOrigin)
	}
	flags.UpdatedAt = now

	// every mark is refreshed to a full OriginTTL when placed, so the index outlives them all
	if err := kvstore.SetJSON(ctx, s.store, key, flags, s.config.OriginTTL); err != nil {
		s.storeError("set_flags", err)
	}
}

func (s *Service) unmarkOrigin(ctx context.Context, key, flaggedBy string) {
	unlock := lockStripe(&s.originLocks, key)
	defer unlock()

	record, found := s.loadOrigin(ctx, key)
	if !found {
		return
	}
	record.FlaggedBy = slices.DeleteFunc(record.FlaggedBy, func(v string) bool { return v == flaggedBy })

	if len(record.FlaggedBy) == 0 {
		if err := s.store.Delete(ctx, key); err != nil {
			s.storeError("delete_origin", err)
		}
		return
	}

	remaining := record.FlaggedAt.Add(s.config.OriginTTL).Sub(s.now())
	if remaining <= 0 {
		return
	}
	if err := kvstore.SetJSON(ctx, s.store, key, record, remaining); err != nil {
		s.storeError("set_origin", err)
	}
}

func (s *Service) escalate(identifier, origin string, failures int) {
	if s.notifier == nil {
		return
	}

	var severity model.Severity
	var title string
	switch failures {
	case s.config.WarnThreshold:
		severity, title = model.SeverityMedium, "Repeated login failures"
	case s.config.EscalateThreshold:
		severity, title = model.SeverityHigh, "Login attempts escalated"
	case s.config.CriticalThreshold:
		severity, title = model.SeverityCritical, "Sustained login attack"
	default:
		return
	}

	metadata := map[string]interface{}{
		"identifier":    identifier,
		"failure_count": failures,
	}
	if origin != "" {
		metadata["origin"] = origin
	}
	message := fmt.Sprintf("%d consecutive failed logins for %s within %s", failures, identifier, s.config.Window)
	s.notifier.Dispatch(model.NewAlert(severity, title, message, metadata))
}

func (s *Service) status(identifier string, counter *model.LoginAttemptCounter) model.LoginAttemptStatus {
	if counter.FailureCount == 0 {
		return s.cleanStatus(identifier)
	}
	state := model.AttemptStateClean
	switch {
	case counter.FailureCount >= s.config.EscalateThreshold:
		state = model.AttemptStateEscalated
	case counter.FailureCount >= s.config.WarnThreshold:
		state = model.AttemptStateWarned
	}
	resetAt := counter.LastFailure.Add(s.config.Window).UTC()
	return model.LoginAttemptStatus{
		Identifier:   identifier,
		FailureCount: counter.FailureCount,
		State:        state,
		Locked:       state == model.AttemptStateEscalated,
		ResetAt:      &resetAt,
	}
}

func (s *Service) cleanStatus(identifier string) model.LoginAttemptStatus {
	return model.LoginAttemptStatus{Identifier: identifier, State: model.AttemptStateClean}
}

func (s *Service) storeError(op string, err error) {
	s.logger.Error(err, "login attempt store failure", "operation", op)
	s.count(func(m *metrics.Metrics) { m.StoreErrors.WithLabelValues(op).Inc() })
}

func (s *Service) count(fn func(m *metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
