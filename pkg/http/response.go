package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "Agentomics/pkg/logger"
)

// Envelope wraps every JSON body.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes data in the envelope with status as both HTTP and body status.
func JSON(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return JSON(c, http.StatusOK, data)
}

// ErrorHandler renders AppError and echo.HTTPError in the envelope. Anything
// else becomes an opaque 500 and is logged.
func ErrorHandler(l *applogger.Logger) echo.HTTPErrorHandler {
	if l == nil {
		l = applogger.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			appErr  *AppError
			echoErr *echo.HTTPError
		)
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &echoErr):
			appErr = newAppError(echoErr.Code, "ERR_HTTP", http.StatusText(echoErr.Code))
			if msg, ok := echoErr.Message.(string); ok {
				appErr.Message = msg
			}
		default:
			appErr = InternalError("something went wrong").WithError(err)
		}

		if appErr.Status >= http.StatusInternalServerError {
			l.Error("request failed",
				applogger.String("path", c.Path()),
				applogger.Int("status", appErr.Status),
				applogger.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Status)
			return
		}
		_ = JSON(c, appErr.Status, appErr)
	}
}
