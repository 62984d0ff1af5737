package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/risk-api/internal/handler"
	apperrors "github.com/jwalitptl/risk-api/pkg/errors"
)

// ErrorHandler renders the last error a handler recorded with c.Error, unless something
// further down the chain already wrote a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		last := c.Errors.Last()
		if last.IsType(gin.ErrorTypeBind) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request body"))
			return
		}

		c.JSON(apperrors.HTTPStatus(last.Err), handler.NewErrorResponse(apperrors.Message(last.Err)))
	}
}
