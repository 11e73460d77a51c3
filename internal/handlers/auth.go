package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crossfellowship/registrar/internal/accounts"
	"github.com/crossfellowship/registrar/internal/auth"
)

// Authenticator is the account surface used for login and self-service.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (accounts.User, error)
	Get(ctx context.Context, id int64) (accounts.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
}

type AuthHandler struct {
	accounts  Authenticator
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

type LoginRequest struct {
	// Username accepts either the username or the email address.
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      accounts.User `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

func NewAuthHandler(log *slog.Logger, svc Authenticator, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		accounts:  svc,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	g := e.Group("/auth")
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.GET("/me", h.Me)
	g.POST("/change-password", h.ChangePassword)
}

// Login godoc
// @Summary Log in to the review dashboard
// @Tags auth
// @Param payload body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Error("login failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	token, expiresAt, err := auth.GenerateToken(auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	}, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("sign token failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// Refresh reissues the caller's token with a new expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.jwtSecret, h.expiresIn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"token": token, "expires_at": expiresAt})
}

func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Get(c.Request().Context(), claims.UserID)
	if errors.Is(err, accounts.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags auth
// @Param payload body ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	err = h.accounts.ChangePassword(c.Request().Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"message": "Password updated successfully"})
	case errors.Is(err, accounts.ErrPasswordTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, accounts.ErrWrongPassword):
		return echo.NewHTTPError(http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, accounts.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	default:
		h.logger.Error("change password failed", slog.Int64("user_id", claims.UserID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to change password")
	}
}
