package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/risk-api/internal/middleware"
	"github.com/jwalitptl/risk-api/internal/model"
)

type stubGuard struct {
	cleared  []string
	clearErr error
}

func (g *stubGuard) Status(_ context.Context, identifier string) model.LoginAttemptStatus {
	return model.LoginAttemptStatus{Identifier: identifier, FailureCount: 3, State: model.AttemptStateWarned}
}

func (g *stubGuard) ClearOrigin(_ context.Context, origin string) error {
	g.cleared = append(g.cleared, origin)
	return g.clearErr
}

type stubEvents struct {
	filter model.SecurityEventFilter
	events []*model.SecurityEvent
	err    error
}

func (s *stubEvents) Create(context.Context, *model.SecurityEvent) error { return nil }

func (s *stubEvents) List(_ context.Context, filter model.SecurityEventFilter) ([]*model.SecurityEvent, error) {
	s.filter = filter
	return s.events, s.err
}

func (s *stubEvents) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func setup(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h.RegisterRoutes(r.Group("/api/v1/admin"))
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetLoginAttempts(t *testing.T) {
	r := setup(NewHandler(&stubGuard{}, nil))

	w := do(r, http.MethodGet, "/api/v1/admin/login-attempts?identifier=user@test.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"warned"`)

	w = do(r, http.MethodGet, "/api/v1/admin/login-attempts")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "identifier is required")
}

func TestClearOrigin(t *testing.T) {
	g := &stubGuard{}
	r := setup(NewHandler(g, nil))

	w := do(r, http.MethodDelete, "/api/v1/admin/origins/203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"203.0.113.7"}, g.cleared)

	g.clearErr = errors.New("store down")
	w = do(r, http.MethodDelete, "/api/v1/admin/origins/203.0.113.7")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListSecurityEvents(t *testing.T) {
	events := &stubEvents{events: []*model.SecurityEvent{{
		ID:        uuid.New(),
		Severity:  model.SeverityHigh,
		Title:     "Login attempts escalated",
		Metadata:  json.RawMessage(`{}`),
		CreatedAt: time.Now().UTC(),
	}}}
	r := setup(NewHandler(&stubGuard{}, events))

	w := do(r, http.MethodGet, "/api/v1/admin/security-events?severity=HIGH&since=2024-01-01T00:00:00Z&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.SeverityHigh, events.filter.Severity)
	assert.Equal(t, 5, events.filter.Limit)
	assert.Equal(t, 2024, events.filter.Since.Year())
	assert.Contains(t, w.Body.String(), "Login attempts escalated")
}

func TestListSecurityEvents_BadFilters(t *testing.T) {
	r := setup(NewHandler(&stubGuard{}, &stubEvents{}))

	for _, q := range []string{"severity=urgent", "since=yesterday", "limit=-1"} {
		w := do(r, http.MethodGet, "/api/v1/admin/security-events?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestListSecurityEvents_Disabled(t *testing.T) {
	r := setup(NewHandler(&stubGuard{}, nil))

	w := do(r, http.MethodGet, "/api/v1/admin/security-events")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "security event log unavailable")
}
