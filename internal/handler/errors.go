package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/logger"
)

const genericServerError = "An error occurred while processing your request"

type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Message    string `json:"message"`
}

// ErrorHandler renders every error returned by a handler or middleware as
// the JSON error envelope.  Server errors are logged in full and reach the
// client only as a generic message.
func ErrorHandler(base *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := apperr.Status(err)
		msg := apperr.Message(err)
		log := logger.From(c, base)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", logger.ErrorFields(err)...)
			msg = genericServerError
		} else {
			log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
		}

		req := c.Request()
		if req.Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorEnvelope{
			StatusCode: status,
			Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Path:       req.URL.Path,
			Method:     req.Method,
			Message:    msg,
		})
	}
}
