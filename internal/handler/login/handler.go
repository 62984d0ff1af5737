package login

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/risk-api/internal/handler"
	"github.com/jwalitptl/risk-api/internal/model"
)

// Guard is the login attempt guard as the HTTP layer sees it.
type Guard interface {
	RecordFailure(ctx context.Context, identifier, origin string) model.LoginAttemptStatus
	RecordSuccess(ctx context.Context, identifier string) model.LoginAttemptStatus
	IsOriginSuspicious(ctx context.Context, origin string) bool
}

type Handler struct {
	guard Guard
}

func NewHandler(guard Guard) *Handler {
	return &Handler{guard: guard}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	attempts := r.Group("/login-attempts")
	{
		attempts.POST("/failure", h.RecordFailure)
		attempts.POST("/success", h.RecordSuccess)
	}
	r.GET("/origins/:origin/suspicious", h.OriginSuspicious)
}

type failureRequest struct {
	Identifier string `json:"identifier" binding:"required,notblank,max=320"`
	// Origin defaults to the caller's address when omitted.
	Origin string `json:"origin" binding:"omitempty,max=255"`
}

type successRequest struct {
	Identifier string `json:"identifier" binding:"required,notblank,max=320"`
}

type originResponse struct {
	Origin     string `json:"origin"`
	Suspicious bool   `json:"suspicious"`
}

func (h *Handler) RecordFailure(c *gin.Context) {
	var req failureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.AbortBind(c, err)
		return
	}

	origin := req.Origin
	if origin == "" {
		origin = c.ClientIP()
	}

	status := h.guard.RecordFailure(c.Request.Context(), req.Identifier, origin)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
}

func (h *Handler) RecordSuccess(c *gin.Context) {
	var req successRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.AbortBind(c, err)
		return
	}

	status := h.guard.RecordSuccess(c.Request.Context(), req.Identifier)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
}

func (h *Handler) OriginSuspicious(c *gin.Context) {
	origin := c.Param("origin")
	c.JSON(http.StatusOK, handler.NewSuccessResponse(originResponse{
		Origin:     origin,
		Suspicious: h.guard.IsOriginSuspicious(c.Request.Context(), origin),
	}))
}
