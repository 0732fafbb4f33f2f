package http

import (
	"errors"
	"net/http"

	applogger "RiskApprove/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InternalErrorMessage is the only text a 500 response ever carries.
const InternalErrorMessage = "internal server error"

// SuccessResponse writes data as a bare 200 JSON body.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// ListResponse writes a bounded list response.
func ListResponse(c echo.Context, rows interface{}, total int) error {
	return c.JSON(http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

// ErrorResponse writes {"error": message} with the given status.
func ErrorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorBody{Error: message})
}

// BadRequestResponse writes a 400 carrying validation details.
func BadRequestResponse(c echo.Context, details []ValidationError) error {
	msg := http.StatusText(http.StatusBadRequest)
	if len(details) > 0 && details[0].Message != "" {
		msg = details[0].Message
	}
	return c.JSON(http.StatusBadRequest, ErrorBody{Error: msg, Details: details})
}

// InternalServerErrorResponse writes a 500 with a generic message.
func InternalServerErrorResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusInternalServerError, InternalErrorMessage)
}

// AppErrorResponse renders err. AppErrors keep their status and curated message.
// Anything else is logged and rendered as a generic 500.
func AppErrorResponse(c echo.Context, l *applogger.Logger, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil && l != nil {
			l.Warn("request failed",
				applogger.String("path", c.Path()),
				applogger.Int("status", appErr.Status),
				applogger.Error(appErr.Err),
			)
		}
		return ErrorResponse(c, appErr.Status, appErr.Message)
	}

	if l != nil {
		l.Error("unhandled request error",
			applogger.String("path", c.Path()),
			applogger.Error(err),
		)
	}
	return InternalServerErrorResponse(c)
}
