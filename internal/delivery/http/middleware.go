package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dkachur-dev/contact-vault/internal/domain"
	"github.com/dkachur-dev/contact-vault/internal/usecase"
)

const (
	ctxUserKey  = "current_user"
	ctxTokenKey = "access_token"

	// Every authentication failure gets this exact message; the distinct
	// forbidden message is reserved for role failures.
	msgUnauthorized = "could not validate credentials"
	msgForbidden    = "access forbidden"
	msgTransient    = "service temporarily unavailable"
)

// Authenticate resolves the bearer access token into a full user record via
// the auth usecase (token verification, cache, directory fallback) and stores
// it in the request context for handlers and the role gate.
func Authenticate(auth *usecase.AuthUsecase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
			}

			user, err := auth.CurrentUser(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrTransient) {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgTransient})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
			}

			c.Set(ctxUserKey, user)
			c.Set(ctxTokenKey, token)
			return next(c)
		}
	}
}

// RequireRoles rejects requests whose resolved user holds none of the allowed
// roles. Must run after Authenticate.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(ctxUserKey).(*domain.User)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
			}
			if err := domain.RequireRole(user, roles...); err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": msgForbidden})
			}
			return next(c)
		}
	}
}

// bearerToken extracts the raw token from an "Authorization: Bearer <token>"
// header.
func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// currentUser returns the user stored by Authenticate.
func currentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(ctxUserKey).(*domain.User)
	return user, ok
}
