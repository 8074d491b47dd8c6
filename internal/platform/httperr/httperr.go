// Package httperr renders every handler error as {"error": msg} with an
// optional "details" object.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope.
type Body struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Error carries a status together with the envelope. Handlers return it (or
// an *echo.HTTPError) and ErrorHandler writes it.
type Error struct {
	Code    int
	Message string
	Details interface{}
	Reason  string
	// Cause is logged for 5xx responses and never sent to the client.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Validation is the 422 returned for input that failed schema checks.
func Validation(details interface{}) *Error {
	return &Error{Code: http.StatusUnprocessableEntity, Message: "Invalid input data", Details: details}
}

func Unauthorized() *Error {
	return New(http.StatusUnauthorized, "Unauthorized")
}

func Forbidden() *Error {
	return New(http.StatusForbidden, "Forbidden")
}

func NotFound(msg string) *Error {
	if msg == "" {
		msg = "Not found"
	}
	return New(http.StatusNotFound, msg)
}

func Conflict(msg string) *Error {
	return New(http.StatusConflict, msg)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: "Internal server error", Cause: cause}
}

// InvalidJSON is returned when a request body cannot be decoded.
func InvalidJSON() *Error {
	return New(http.StatusBadRequest, "Invalid JSON")
}

func InvalidID() *Error {
	return New(http.StatusUnprocessableEntity, "Invalid id")
}

func InvalidQuery() *Error {
	return New(http.StatusUnprocessableEntity, "Invalid query parameters")
}

// ErrorHandler returns an echo.HTTPErrorHandler producing the JSON envelope.
// Server errors are logged with their cause.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body, cause := resolve(err)
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(cause).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func resolve(err error) (int, Body, error) {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Code >= http.StatusInternalServerError && msg == "" {
			msg = "Internal server error"
		}
		return e.Code, Body{Error: msg, Details: e.Details, Reason: e.Reason}, err
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
		cause := err
		if he.Internal != nil {
			cause = he.Internal
		}
		if he.Code >= http.StatusInternalServerError {
			msg = "Internal server error"
		}
		return he.Code, Body{Error: msg}, cause
	}

	return http.StatusInternalServerError, Body{Error: "Internal server error"}, err
}
