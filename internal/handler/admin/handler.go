package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/risk-api/internal/handler"
	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/repository"
	apperrors "github.com/jwalitptl/risk-api/pkg/errors"
)

// Guard is the operator view of the login attempt guard.
type Guard interface {
	Status(ctx context.Context, identifier string) model.LoginAttemptStatus
	ClearOrigin(ctx context.Context, origin string) error
}

type Handler struct {
	guard  Guard
	events repository.SecurityEventRepository
}

// NewHandler accepts a nil events repository when the security event log is disabled.
func NewHandler(guard Guard, events repository.SecurityEventRepository) *Handler {
	return &Handler{guard: guard, events: events}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/login-attempts", h.GetLoginAttempts)
	r.DELETE("/origins/:origin", h.ClearOrigin)
	r.GET("/security-events", h.ListSecurityEvents)
}

func (h *Handler) GetLoginAttempts(c *gin.Context) {
	identifier := strings.TrimSpace(c.Query("identifier"))
	if identifier == "" {
		handler.Abort(c, apperrors.BadRequest("identifier is required", nil))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.guard.Status(c.Request.Context(), identifier)))
}

func (h *Handler) ClearOrigin(c *gin.Context) {
	origin := c.Param("origin")
	if err := h.guard.ClearOrigin(c.Request.Context(), origin); err != nil {
		handler.Abort(c, apperrors.Unavailable("attempt store", err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"origin":  origin,
		"cleared": true,
	}))
}

func (h *Handler) ListSecurityEvents(c *gin.Context) {
	if h.events == nil {
		handler.Abort(c, apperrors.Unavailable("security event log", nil))
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		handler.Abort(c, err)
		return
	}

	events, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		handler.Abort(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

func parseFilter(c *gin.Context) (model.SecurityEventFilter, error) {
	var filter model.SecurityEventFilter

	if v := c.Query("severity"); v != "" {
		severity := model.Severity(strings.ToLower(v))
		if severity.Rank() == 0 {
			return filter, apperrors.BadRequest("invalid severity", nil)
		}
		filter.Severity = severity
	}

	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.BadRequest("since must be RFC3339", err)
		}
		filter.Since = since
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, apperrors.BadRequest("limit must be a positive integer", err)
		}
		filter.Limit = limit
	}

	return filter, nil
}
