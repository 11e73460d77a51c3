package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crossfellowship/registrar/internal/accounts"
	"github.com/crossfellowship/registrar/internal/auth"
)

// UserService is the super-admin account surface. *accounts.Service satisfies it.
type UserService interface {
	List(ctx context.Context) ([]accounts.User, error)
	Create(ctx context.Context, address string, role accounts.Role) (accounts.Provisioned, error)
	Delete(ctx context.Context, actorID, id int64) error
	ResendInvitation(ctx context.Context, id int64) (accounts.Provisioned, error)
}

// UsersHandler manages dashboard accounts. Every route requires the super_admin role.
type UsersHandler struct {
	service UserService
	logger  *slog.Logger
}

type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=super_admin reviewer"`
}

// ProvisionResponse reports a created or re-invited user. TempPassword is only
// present when the invitation email could not be delivered.
type ProvisionResponse struct {
	User         accounts.User `json:"user"`
	Invited      bool          `json:"invited"`
	Warning      string        `json:"warning,omitempty"`
	TempPassword string        `json:"temp_password,omitempty"`
}

func NewUsersHandler(log *slog.Logger, service UserService) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	g := e.Group("/users", auth.RequireRole("Super admin access required", string(accounts.RoleSuperAdmin)))
	g.GET("", h.ListUsers)
	g.POST("", h.CreateUser)
	g.DELETE("/:id", h.DeleteUser)
	g.POST("/:id/resend", h.ResendInvitation)
}

// ListUsers godoc
// @Summary List dashboard users
// @Tags users
// @Success 200 {array} accounts.User
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (h *UsersHandler) ListUsers(c echo.Context) error {
	users, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser godoc
// @Summary Invite a dashboard user
// @Tags users
// @Param payload body CreateUserRequest true "User payload"
// @Success 201 {object} ProvisionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (h *UsersHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	out, err := h.service.Create(c.Request().Context(), req.Email, accounts.Role(req.Role))
	if err != nil {
		return h.translate(err)
	}
	return c.JSON(http.StatusCreated, provisionResponse(out))
}

func (h *UsersHandler) DeleteUser(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), claims.UserID, id); err != nil {
		return h.translate(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// ResendInvitation rotates the user's password and emails it again.
func (h *UsersHandler) ResendInvitation(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	out, err := h.service.ResendInvitation(c.Request().Context(), id)
	if err != nil {
		return h.translate(err)
	}
	return c.JSON(http.StatusOK, provisionResponse(out))
}

func (h *UsersHandler) translate(err error) error {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, accounts.ErrEmailExists):
		return echo.NewHTTPError(http.StatusConflict, "A user with this email already exists")
	case errors.Is(err, accounts.ErrSelfDelete),
		errors.Is(err, accounts.ErrNoEmail),
		errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, accounts.ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("user operation failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "user operation failed")
	}
}

func provisionResponse(out accounts.Provisioned) ProvisionResponse {
	return ProvisionResponse{
		User:         out.User,
		Invited:      out.Invited,
		Warning:      out.Warning,
		TempPassword: out.TempPassword,
	}
}
