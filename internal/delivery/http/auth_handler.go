package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dkachur-dev/contact-vault/internal/domain"
	"github.com/dkachur-dev/contact-vault/internal/usecase"
	"github.com/dkachur-dev/contact-vault/pkg/security"
)

// AuthHandler represents the HTTP delivery layer for authentication.
type AuthHandler struct {
	usecase *usecase.AuthUsecase
}

// NewAuthHandler registers the authentication routes to the provided echo group.
func NewAuthHandler(e *echo.Group, u *usecase.AuthUsecase) {
	handler := &AuthHandler{usecase: u}

	e.POST("/signup", handler.Signup)
	e.POST("/login", handler.Login)
	e.POST("/refresh_token", handler.Refresh)
	e.POST("/logout", handler.Logout, Authenticate(u))
	e.GET("/confirmed_email/:token", handler.ConfirmEmail)
	e.POST("/request_email", handler.ResendConfirmation)
	e.POST("/request_reset", handler.RequestReset)
	e.POST("/reset_password", handler.ResetPassword)
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// Signup registers a new unconfirmed account and queues a confirmation email.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	user, err := h.usecase.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, echo.Map{"error": domain.ErrEmailTaken.Error()})
		}
		return authError(c, err)
	}

	return c.JSON(http.StatusCreated, user)
}

// Login handles credential validation and token pair issuance.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	pair, err := h.usecase.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token into a new access/refresh pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	pair, err := h.usecase.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's refresh session and cached identity.
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := c.Get(ctxTokenKey).(string)

	if err := h.usecase.Logout(c.Request().Context(), token); err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// ConfirmEmail flips the account to confirmed; repeat confirmations succeed.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	if err := h.usecase.ConfirmEmail(c.Request().Context(), c.Param("token")); err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email confirmed"})
}

// ResendConfirmation queues another confirmation email. The response never
// reveals whether the address is registered.
func (h *AuthHandler) ResendConfirmation(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.usecase.ResendConfirmation(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrTransient) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgTransient})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "check your email for further instructions"})
}

// RequestReset starts the password-reset flow. The response is identical for
// registered and unregistered addresses.
func (h *AuthHandler) RequestReset(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.usecase.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrTransient) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgTransient})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "check your email for further instructions"})
}

// ResetPassword consumes a reset token and installs the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.usecase.ConsumePasswordReset(c.Request().Context(), req.Email, req.Token, req.NewPassword); err != nil {
		return authError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// authError maps usecase failures onto HTTP statuses. Every credential or
// token problem collapses into the same generic 401 body; only transient
// backend failures and internal errors are distinguishable.
func authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTransient):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msgTransient})
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrExpiredToken),
		errors.Is(err, security.ErrWrongTokenClass):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
