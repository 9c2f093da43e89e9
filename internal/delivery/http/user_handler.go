package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dkachur-dev/contact-vault/internal/usecase"
)

// UserHandler exposes the resolved identity of the caller.
type UserHandler struct{}

// NewUserHandler registers the user routes to the provided echo group.
func NewUserHandler(e *echo.Group, auth *usecase.AuthUsecase) {
	handler := &UserHandler{}

	e.GET("/users/me", handler.Me, Authenticate(auth))
}

// Me returns the directory-resolved user for the presented access token.
func (h *UserHandler) Me(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}
	return c.JSON(http.StatusOK, user)
}
