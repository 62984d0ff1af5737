package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	storeErr := error(nil)

	r := gin.New()
	NewHandler(map[string]Check{
		"store": func(context.Context) error { return storeErr },
	}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP","checks":{"store":"UP"}}`, w.Body.String())

	storeErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"store":"DOWN"}}`, w.Body.String())
}

func TestReadinessReportsInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	breaker := "closed"

	r := gin.New()
	NewHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
	}).
		WithInfo("breach_breaker", func() interface{} { return breaker }).
		WithInfo("breach_sessions_in_flight", func() interface{} { return 2 }).
		RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP","checks":{"store":"UP"},"info":{"breach_breaker":"closed","breach_sessions_in_flight":2}}`, w.Body.String())

	// an open breaker is reported but readiness stays up
	breaker = "open"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"breach_breaker":"open"`)
}
