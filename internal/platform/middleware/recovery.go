package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/httperr"
)

// Recovery turns a handler panic into a 500. It runs inside Logger so the
// panic is logged with the request id and the response status is recorded.
// fallback is used when no request logger is on the context.
func Recovery(fallback zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger := zerolog.Ctx(c.Request().Context())
				if logger.GetLevel() == zerolog.Disabled {
					logger = &fallback
				}
				logger.Error().
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				err = httperr.Internal(fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
