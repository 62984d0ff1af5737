package password

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/risk-api/internal/handler"
	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/service/breach"
	"github.com/jwalitptl/risk-api/internal/service/risk"
	"github.com/jwalitptl/risk-api/internal/service/strength"
	apperrors "github.com/jwalitptl/risk-api/pkg/errors"
)

// SessionChecker runs breach checks that newer input from the same session can supersede.
type SessionChecker interface {
	Submit(ctx context.Context, sessionID, password string) (model.BreachResult, error)
}

type Handler struct {
	scorer    *strength.Scorer
	checker   risk.BreachChecker
	sessions  SessionChecker
	evaluator *risk.Evaluator
}

func NewHandler(scorer *strength.Scorer, checker risk.BreachChecker, sessions SessionChecker) *Handler {
	return &Handler{
		scorer:    scorer,
		checker:   checker,
		sessions:  sessions,
		evaluator: risk.NewEvaluator(scorer, checker),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	password := r.Group("/password")
	{
		password.POST("/strength", h.Strength)
		password.POST("/breach", h.Breach)
		password.POST("/evaluate", h.Evaluate)
	}
}

type strengthRequest struct {
	Password string `json:"password" binding:"max=1024"`
}

type breachRequest struct {
	Password  string `json:"password" binding:"required,max=1024"`
	SessionID string `json:"session_id" binding:"omitempty,max=128"`
}

type strengthResponse struct {
	Strength     *model.PasswordStrengthResult `json:"strength"`
	Requirements *model.PasswordRequirements   `json:"requirements"`
}

func (h *Handler) Strength(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.AbortBind(c, err)
		return
	}

	result, requirements := h.scorer.Evaluate(req.Password)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(strengthResponse{
		Strength:     result,
		Requirements: requirements,
	}))
}

// Breach answers 409 when a newer request from the same session replaced this one; the
// caller discards it and waits for the newer answer.
func (h *Handler) Breach(c *gin.Context) {
	var req breachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.AbortBind(c, err)
		return
	}

	if req.SessionID == "" || h.sessions == nil {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(h.checker.Check(c.Request.Context(), req.Password)))
		return
	}

	// scoped per client so one caller cannot supersede another's session
	sessionKey := c.ClientIP() + "|" + req.SessionID
	result, err := h.sessions.Submit(c.Request.Context(), sessionKey, req.Password)
	if err != nil {
		if errors.Is(err, breach.ErrStale) {
			handler.Abort(c, apperrors.Conflict("breach check superseded by newer input", err))
			return
		}
		handler.Abort(c, apperrors.Unavailable("breach check", err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) Evaluate(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.AbortBind(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.evaluator.Evaluate(c.Request.Context(), req.Password)))
}
