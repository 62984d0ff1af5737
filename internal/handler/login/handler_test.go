package login

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/risk-api/internal/middleware"
	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/service/guard"
	"github.com/jwalitptl/risk-api/pkg/kvstore"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators(middleware.DefaultValidationConfig()))

	svc := guard.NewService(kvstore.NewMemoryStore(time.Minute), nil, guard.Config{}, nil, nil)

	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation(middleware.DefaultValidationConfig()))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func statusOf(t *testing.T, env envelope) model.LoginAttemptStatus {
	t.Helper()
	var s model.LoginAttemptStatus
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func suspicious(t *testing.T, r http.Handler, origin string) bool {
	t.Helper()
	w, env := do(t, r, http.MethodGet, "/api/v1/origins/"+origin+"/suspicious", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out originResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.Suspicious
}

func TestFailureEscalatesAndFlagsClientIP(t *testing.T) {
	r := setup(t)

	var status model.LoginAttemptStatus
	for i := 0; i < 5; i++ {
		w, env := do(t, r, http.MethodPost, "/api/v1/login-attempts/failure", map[string]string{"identifier": "user@test.com"})
		require.Equal(t, http.StatusOK, w.Code)
		status = statusOf(t, env)
	}

	assert.Equal(t, 5, status.FailureCount)
	assert.Equal(t, model.AttemptStateEscalated, status.State)
	assert.True(t, suspicious(t, r, "192.0.2.10"))
}

func TestExplicitOrigin(t *testing.T) {
	r := setup(t)

	for i := 0; i < 5; i++ {
		do(t, r, http.MethodPost, "/api/v1/login-attempts/failure", map[string]string{
			"identifier": "user@test.com",
			"origin":     "203.0.113.7",
		})
	}
	assert.True(t, suspicious(t, r, "203.0.113.7"))
	assert.False(t, suspicious(t, r, "192.0.2.10"))
}

func TestSuccessResets(t *testing.T) {
	r := setup(t)

	for i := 0; i < 4; i++ {
		do(t, r, http.MethodPost, "/api/v1/login-attempts/failure", map[string]string{"identifier": "user@test.com"})
	}
	w, env := do(t, r, http.MethodPost, "/api/v1/login-attempts/success", map[string]string{"identifier": "user@test.com"})
	require.Equal(t, http.StatusOK, w.Code)

	status := statusOf(t, env)
	assert.Equal(t, model.AttemptStateClean, status.State)
	assert.Equal(t, 0, status.FailureCount)
}

func TestBlankIdentifierRejected(t *testing.T) {
	r := setup(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/login-attempts/failure", map[string]string{"identifier": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Data), "Field must not be blank")
}
