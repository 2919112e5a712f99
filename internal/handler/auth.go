package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/config"
	"github.com/iliyamo/estate-listings/internal/middleware"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/utils"
)

// Credentials is the account logic behind the auth endpoints.
type Credentials interface {
	Register(ctx context.Context, email, password string, name *string) (model.User, error)
	Authenticate(ctx context.Context, email, password string) (model.User, error)
	IssueToken(u model.User) (utils.SessionToken, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	creds  Credentials
	cookie string
	secure bool
}

func NewAuthHandler(cfg config.Config, creds Credentials) *AuthHandler {
	return &AuthHandler{creds: creds, cookie: cfg.CookieName, secure: cfg.Production()}
}

type registerReq struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	ID      uint64 `json:"id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) startSession(c echo.Context, u model.User) error {
	tok, err := h.creds.IssueToken(u)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(tok.Token, int(config.SessionTTL.Seconds())))
	return nil
}

// Register creates an account and signs the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	u, err := h.creds.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	if err := h.startSession(c, u); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResp{ID: u.ID, Email: u.Email, Message: "User registered successfully"})
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}
	u, err := h.creds.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if err := h.startSession(c, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResp{ID: u.ID, Email: u.Email, Message: "Login successful"})
}

// Logout clears the session cookie.  The token itself stays valid until
// it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessionCookie("", -1))
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me returns the identity of the current session.
func (h *AuthHandler) Me(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return apperr.Auth("missing token")
	}
	return c.JSON(http.StatusOK, ident)
}
