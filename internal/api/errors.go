package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
)

// respondError writes the error body for err. Only unexpected failures are
// logged at error level; client mistakes are already visible in the access log.
func respondError(c *gin.Context, log zerolog.Logger, err error, msg string) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperr.ErrTimeout
	}
	status, body := apperr.HTTPStatus(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	} else {
		log.Debug().Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	c.JSON(status, body)
}

// badRequest reports a malformed request body or parameter
func badRequest(c *gin.Context, message string) {
	status, body := apperr.HTTPStatus(apperr.ErrValidation)
	body.Error.Message = message
	c.JSON(status, body)
}

// currentUser returns the identity set by identityMiddleware
func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}
