package web

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	userdomain "tokengate/internal/user/domain"
)

// userContextKey is the echo context key holding the authenticated user.
const userContextKey = "auth.user"

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c echo.Context) *userdomain.User {
	user, _ := c.Get(userContextKey).(*userdomain.User)
	return user
}

// RequireAuth resolves the user from the signed access cookie, falling back
// to an Authorization bearer token for non-browser clients. Requests
// without a valid access token get a generic 401; the response never
// reveals which check failed.
func (a *AuthAPI) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := a.cookies.ReadAccessToken(c)
		if !ok {
			token = bearerToken(c)
		}
		user, err := a.svc.ValidateAccessToken(c.Request().Context(), token)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, failure("authentication check failed"))
		}
		if user == nil {
			return c.JSON(http.StatusUnauthorized, failure("authentication required"))
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireRole gates a route to users whose role is in roles. Must be
// applied after RequireAuth.
func RequireRole(roles ...userdomain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return c.JSON(http.StatusUnauthorized, failure("authentication required"))
			}
			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, failure("insufficient permissions"))
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
