package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dkachur-dev/contact-vault/internal/domain"
	"github.com/dkachur-dev/contact-vault/internal/usecase"
)

// ContactHandler is the HTTP delivery layer for the address book.
type ContactHandler struct {
	usecase *usecase.ContactUsecase
}

// NewContactHandler registers the contact routes. Everything requires an
// authenticated user; the cross-user listing additionally requires the admin
// or moderator role.
func NewContactHandler(e *echo.Group, u *usecase.ContactUsecase, auth *usecase.AuthUsecase) {
	handler := &ContactHandler{usecase: u}

	g := e.Group("/contacts", Authenticate(auth))
	g.GET("", handler.List)
	g.POST("", handler.Create)
	g.GET("/search", handler.Search)
	g.GET("/birthdays", handler.UpcomingBirthdays)
	g.GET("/all", handler.ListAll, RequireRoles(domain.RoleAdmin, domain.RoleModerator))
	g.GET("/:id", handler.Get)
	g.PUT("/:id", handler.Update)
	g.DELETE("/:id", handler.Delete)
}

type contactRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=15"`
	LastName       string `json:"last_name" validate:"required,max=15"`
	Email          string `json:"email" validate:"required,email"`
	Number         string `json:"contact_number" validate:"required,max=20"`
	BirthDate      string `json:"birth_date" validate:"required"` // YYYY-MM-DD
	AdditionalInfo string `json:"additional_information" validate:"max=250"`
}

func (r contactRequest) toInput() (usecase.ContactInput, error) {
	birth, err := time.Parse("2006-01-02", r.BirthDate)
	if err != nil {
		return usecase.ContactInput{}, err
	}
	return usecase.ContactInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Number:         r.Number,
		BirthDate:      birth,
		AdditionalInfo: r.AdditionalInfo,
	}, nil
}

// Create adds a contact to the caller's address book.
func (h *ContactHandler) Create(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "birth_date must be YYYY-MM-DD"})
	}

	contact, err := h.usecase.Create(c.Request().Context(), user.ID, in)
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusCreated, contact)
}

// List returns a page of the caller's contacts.
func (h *ContactHandler) List(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	contacts, err := h.usecase.List(c.Request().Context(), user.ID, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusOK, contacts)
}

// ListAll returns contacts across every user. Role-gated at registration.
func (h *ContactHandler) ListAll(c echo.Context) error {
	contacts, err := h.usecase.ListAll(c.Request().Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusOK, contacts)
}

// Get returns one of the caller's contacts.
func (h *ContactHandler) Get(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	contact, err := h.usecase.Get(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusOK, contact)
}

// Update replaces the editable fields of one of the caller's contacts.
func (h *ContactHandler) Update(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "birth_date must be YYYY-MM-DD"})
	}

	contact, err := h.usecase.Update(c.Request().Context(), user.ID, c.Param("id"), in)
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusOK, contact)
}

// Delete removes one of the caller's contacts.
func (h *ContactHandler) Delete(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	if err := h.usecase.Delete(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return contactError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Search finds contacts by exact first name, last name, or email.
func (h *ContactHandler) Search(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	contacts, err := h.usecase.Search(c.Request().Context(), user.ID,
		c.QueryParam("first_name"), c.QueryParam("last_name"), c.QueryParam("email"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, contacts)
}

// UpcomingBirthdays lists contacts with a birthday in the next `days` days
// (default 7).
func (h *ContactHandler) UpcomingBirthdays(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgUnauthorized})
	}

	contacts, err := h.usecase.UpcomingBirthdays(c.Request().Context(), user.ID,
		queryInt(c, "days", 7), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		return contactError(c, err)
	}
	return c.JSON(http.StatusOK, contacts)
}

func contactError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

func queryInt(c echo.Context, name string, fallback int) int {
	v := c.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
