package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorRenderer writes a failure message in the shape a route's clients expect.
type ErrorRenderer func(c *gin.Context, status int, message string)

// TextError renders the message as a plain-text body.
func TextError(c *gin.Context, status int, message string) {
	c.String(status, message)
}

// JSONError renders the message as {"error": message}.
func JSONError(c *gin.Context, status int, message string) {
	c.JSON(status, api.ErrorResponse{Error: message})
}

// ErrorHandler is a custom error handling middleware that handles all errors returned by handlers
func ErrorHandler(render ErrorRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// check if there is an error, if so, get the last error
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// the client went away, nobody is left to read a response
		if errors.Is(err, context.Canceled) {
			logger.Debug("Request cancelled by client", zap.String("path", c.Request.URL.Path))
			c.Abort()
			return
		}

		// bytes already went out, the status can no longer change
		if c.Writer.Written() {
			logger.Error("Error after response started", zap.Error(err))
			c.Abort()
			return
		}

		var problem *api.Problem
		if errors.As(err, &problem) {
			// if there is an internal log attached, log it
			if problem.Log != nil {
				logger.Error("Request failed",
					zap.Int("status", problem.Status),
					zap.String("detail", problem.Detail),
					zap.Error(problem.Log),
				)
			}

			message := problem.Detail
			if message == "" {
				message = problem.Title
			}
			render(c, problem.Status, message)
			c.Abort()
			return
		}

		// at this point it's an unknown error.
		logger.Error("Unhandled error", zap.Error(err))
		render(c, http.StatusInternalServerError, "An unexpected error occurred.")
		c.Abort()
	}
}
