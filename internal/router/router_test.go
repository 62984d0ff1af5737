package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/risk-api/internal/handler/admin"
	"github.com/jwalitptl/risk-api/internal/handler/health"
	"github.com/jwalitptl/risk-api/internal/handler/login"
	"github.com/jwalitptl/risk-api/internal/handler/password"
	"github.com/jwalitptl/risk-api/internal/handler/prometheus"
	"github.com/jwalitptl/risk-api/internal/middleware"
	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/service/alert"
	"github.com/jwalitptl/risk-api/internal/service/breach"
	"github.com/jwalitptl/risk-api/internal/service/guard"
	"github.com/jwalitptl/risk-api/internal/service/strength"
	"github.com/jwalitptl/risk-api/pkg/hibp"
	"github.com/jwalitptl/risk-api/pkg/kvstore"
	"github.com/jwalitptl/risk-api/pkg/metrics"
)

const jwtSecret = "test-secret"

// TestResponse wraps the API envelope for assertions.
type TestResponse struct {
	Code    int
	Status  string
	Message string
	Data    map[string]interface{}
	RawData string
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) GetString(key string) string {
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

func (r TestResponse) GetBool(key string) bool {
	v, _ := r.Data[key].(bool)
	return v
}

func (r TestResponse) GetInt(key string) int {
	v, _ := r.Data[key].(float64)
	return int(v)
}

type captureSink struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (s *captureSink) Name() string                { return "capture" }
func (s *captureSink) MinSeverity() model.Severity { return model.SeverityLow }
func (s *captureSink) Send(_ context.Context, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type testServer struct {
	server *httptest.Server
	sink   *captureSink
}

// SHA-1("password") = 5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8
func newRangeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/range/5BAA6" {
			fmt.Fprint(w, "1E4C9B93F3F0682250B6CF8331B7EE68FD8:9545824\r\n0018A45C4D1DEF81644B54AB7F969B88D65:0\r\n")
			return
		}
		fmt.Fprint(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, config RouterConfig) *testServer {
	t.Helper()
	config.Mode = gin.TestMode

	m := metrics.NewMetrics("risk")
	store := kvstore.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	sink := &captureSink{}
	dispatcher := alert.NewDispatcher(alert.Config{}, nil, m, sink)
	dispatcher.Start()
	t.Cleanup(func() { _ = dispatcher.Stop(context.Background()) })

	client := hibp.NewClient(hibp.Config{BaseURL: newRangeServer(t).URL}, nil)
	breachSvc := breach.NewService(client, store, breach.Config{}, nil, m)
	scorer := strength.NewScorer(model.DefaultPasswordPolicy(), func(level model.StrengthLevel) {
		m.StrengthEvaluations.WithLabelValues(string(level)).Inc()
	})
	guardSvc := guard.NewService(store, dispatcher, guard.Config{}, nil, m)

	r, err := NewRouter(middleware.NewAuthMiddleware(jwtSecret, "risk-api"), Handlers{
		Health:   health.NewHandler(map[string]health.Check{"store": store.Ping}),
		Password: password.NewHandler(scorer, breachSvc, breach.NewSessions(breachSvc, 0)),
		Login:    login.NewHandler(guardSvc),
		Admin:    admin.NewHandler(guardSvc, nil),
		Metrics:  prometheus.New(m),
	}, config)
	require.NoError(t, err)
	r.Setup()

	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)
	return &testServer{server: srv, sink: sink}
}

func (s *testServer) makeRequest(t *testing.T, method, path string, body interface{}, token string) TestResponse {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	out := TestResponse{Code: resp.StatusCode}
	if json.Unmarshal(raw, &envelope) == nil {
		out.Status = envelope.Status
		out.Message = envelope.Message
		out.RawData = string(envelope.Data)
		_ = json.Unmarshal(envelope.Data, &out.Data)
	}
	return out
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AdminClaims{
		Role: middleware.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    "risk-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func TestPasswordFlow(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	resp := s.makeRequest(t, http.MethodPost, "/api/v1/password/strength", map[string]string{"password": "123456"}, "")
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.Contains(t, resp.RawData, `"level":"very-weak"`)

	resp = s.makeRequest(t, http.MethodPost, "/api/v1/password/breach", map[string]string{"password": "password"}, "")
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.True(t, resp.GetBool("breached"))
	assert.Equal(t, 9545824, resp.GetInt("count"))

	resp = s.makeRequest(t, http.MethodPost, "/api/v1/password/breach", map[string]string{"password": "password"}, "")
	assert.True(t, resp.GetBool("cached"))

	resp = s.makeRequest(t, http.MethodPost, "/api/v1/password/evaluate", map[string]string{"password": "Tr0ub4dor&3xyz!"}, "")
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.Contains(t, resp.RawData, `"not_pwned":true`)
	assert.NotContains(t, resp.RawData, "notes")
}

func TestLoginEscalationFlow(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	token := adminToken(t)

	var resp TestResponse
	for i := 0; i < 5; i++ {
		resp = s.makeRequest(t, http.MethodPost, "/api/v1/login-attempts/failure", map[string]string{
			"identifier": "user@test.com",
			"origin":     "203.0.113.7",
		}, "")
		require.True(t, resp.IsSuccess(), resp.Message)
	}
	assert.Equal(t, "escalated", resp.GetString("state"))
	assert.Eventually(t, func() bool { return s.sink.count() == 2 }, time.Second, 10*time.Millisecond)

	resp = s.makeRequest(t, http.MethodGet, "/api/v1/origins/203.0.113.7/suspicious", nil, "")
	assert.True(t, resp.GetBool("suspicious"))

	resp = s.makeRequest(t, http.MethodGet, "/api/v1/admin/login-attempts?identifier=user@test.com", nil, token)
	require.True(t, resp.IsSuccess(), resp.Message)
	assert.Equal(t, 5, resp.GetInt("failure_count"))

	resp = s.makeRequest(t, http.MethodDelete, "/api/v1/admin/origins/203.0.113.7", nil, token)
	require.True(t, resp.IsSuccess(), resp.Message)

	resp = s.makeRequest(t, http.MethodGet, "/api/v1/origins/203.0.113.7/suspicious", nil, "")
	assert.False(t, resp.GetBool("suspicious"))

	resp = s.makeRequest(t, http.MethodPost, "/api/v1/login-attempts/success", map[string]string{"identifier": "user@test.com"}, "")
	assert.Equal(t, "clean", resp.GetString("state"))
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	resp := s.makeRequest(t, http.MethodGet, "/api/v1/admin/login-attempts?identifier=user@test.com", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.makeRequest(t, http.MethodGet, "/api/v1/admin/security-events", nil, adminToken(t))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealthMetricsAndHeaders(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	res, err := http.Get(s.server.URL + "/health/ready")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get(middleware.HeaderXRequestID))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))

	s.makeRequest(t, http.MethodPost, "/api/v1/password/strength", map[string]string{"password": "abc"}, "")

	res, err = http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "risk_password_strength_evaluations_total")
	assert.Contains(t, string(body), `path="/api/v1/password/strength"`)
}

func TestRateLimitOnAPIOnly(t *testing.T) {
	s := newTestServer(t, RouterConfig{RateLimitEnabled: true, RateLimit: rate.Every(time.Hour), RateBurst: 1})

	resp := s.makeRequest(t, http.MethodPost, "/api/v1/password/strength", map[string]string{"password": "abc"}, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = s.makeRequest(t, http.MethodPost, "/api/v1/password/strength", map[string]string{"password": "abc"}, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)

	res, err := http.Get(s.server.URL + "/health/live")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	resp := s.makeRequest(t, http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
