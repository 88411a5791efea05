package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PrincipalResolver maps an authenticated subject to a Principal. A nil
// principal with a nil error means the subject has not registered yet.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, subject string) (*Principal, error)
}

// PrincipalMiddleware resolves the caller's principal on every request.
// Grants and roles are looked up fresh each time; nothing is cached across
// requests.
func PrincipalMiddleware(resolver PrincipalResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			subject := SubjectFromContext(ctx)
			if subject == "" {
				return next(c)
			}

			p, err := resolver.ResolvePrincipal(ctx, subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "identity resolution failed")
			}
			if p != nil {
				c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
				c.Set("user_id", p.UserID.String())
			}
			return next(c)
		}
	}
}

// Authenticated rejects requests that carry no principal.
func Authenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := RequireAuth(PrincipalFromContext(c.Request().Context())); err != nil {
				return HTTPError(err)
			}
			return next(c)
		}
	}
}

// RoleMiddleware returns middleware that rejects principals without role.
func RoleMiddleware(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := RequireRole(PrincipalFromContext(c.Request().Context()), role); err != nil {
				return HTTPError(err)
			}
			return next(c)
		}
	}
}

// HTTPError converts authorization errors into echo HTTP errors. Any other
// error becomes a 500.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
