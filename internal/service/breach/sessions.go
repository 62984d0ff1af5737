package breach

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jwalitptl/risk-api/internal/model"
)

// DefaultDebounce is how long a session waits for typing to settle before looking up.
const DefaultDebounce = 500 * time.Millisecond

// ErrStale is returned to a call that was superseded by a newer input in the same session.
// Its result must be discarded.
var ErrStale = errors.New("breach check superseded by newer input")

type pendingCheck struct {
	seq    uint64
	cancel context.CancelFunc
}

// Sessions serialises breach checks per input session. A new submission cancels the previous
// in-flight check of that session, so only the latest input ever produces a result.
type Sessions struct {
	svc   *Service
	delay time.Duration

	mu       sync.Mutex
	seq      uint64
	inflight map[string]*pendingCheck
}

func NewSessions(svc *Service, debounce time.Duration) *Sessions {
	if debounce < 0 {
		debounce = 0
	}
	return &Sessions{
		svc:      svc,
		delay:    debounce,
		inflight: make(map[string]*pendingCheck),
	}
}

// Submit debounces and runs a breach check for sessionID. An empty sessionID runs the check
// immediately with no supersession tracking.
func (s *Sessions) Submit(ctx context.Context, sessionID, password string) (model.BreachResult, error) {
	if sessionID == "" {
		return s.svc.Check(ctx, password), nil
	}

	checkCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if prev, ok := s.inflight[sessionID]; ok {
		prev.cancel()
	}
	s.seq++
	seq := s.seq
	s.inflight[sessionID] = &pendingCheck{seq: seq, cancel: cancel}
	s.mu.Unlock()

	defer s.finish(sessionID, seq, cancel)

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-checkCtx.Done():
			timer.Stop()
			return model.BreachResult{}, s.cancelled(ctx, sessionID, seq)
		case <-timer.C:
		}
	}

	res := s.svc.Check(checkCtx, password)
	if checkCtx.Err() != nil {
		return model.BreachResult{}, s.cancelled(ctx, sessionID, seq)
	}
	return res, nil
}

// Pending reports how many sessions have a check in flight. /health/ready shows it as
// breach_sessions_in_flight.
func (s *Sessions) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Sessions) cancelled(parent context.Context, sessionID string, seq uint64) error {
	if s.superseded(sessionID, seq) {
		return ErrStale
	}
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrStale
}

func (s *Sessions) superseded(sessionID string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.inflight[sessionID]
	return !ok || p.seq != seq
}

func (s *Sessions) finish(sessionID string, seq uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.inflight[sessionID]; ok && p.seq == seq {
		delete(s.inflight, sessionID)
	}
}
