package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"tokengate/internal/auth/service"
	tokendomain "tokengate/internal/token/domain"
	userdomain "tokengate/internal/user/domain"
)

// AuthAPI exposes the auth service over HTTP. Handlers are thin adapters:
// all business rules live in the service layer.
type AuthAPI struct {
	svc     *service.AuthService
	cookies *CookieManager
}

// NewAuthAPI returns the auth HTTP API backed by svc.
func NewAuthAPI(svc *service.AuthService, cookies *CookieManager) *AuthAPI {
	return &AuthAPI{svc: svc, cookies: cookies}
}

// RegisterRoutes registers the auth routes on e.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/logout-all", a.LogoutAll, a.RequireAuth)
	g.GET("/me", a.Me, a.RequireAuth)
	g.POST("/register", a.Register)
}

// userView is the wire representation of a user; the password hash never
// leaves the service.
type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
}

func toUserView(u *userdomain.User) *userView {
	return &userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	}
}

type authResponse struct {
	Success   bool      `json:"success"`
	User      *userView `json:"user,omitempty"`
	ExpiresAt string    `json:"expiresAt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func failure(message string) authResponse {
	return authResponse{Success: false, Message: message}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Login handles POST /api/auth/login.
func (a *AuthAPI) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failure("invalid request body"))
	}

	meta := tokendomain.Metadata{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	}
	res, err := a.svc.Login(c.Request().Context(), req.Email, req.Password, meta)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, failure(service.ErrInvalidCredentials.Error()))
		}
		log.Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, failure("login failed"))
	}

	a.cookies.SetAuthCookies(c, TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	})
	return c.JSON(http.StatusOK, authResponse{
		Success:   true,
		User:      toUserView(res.User),
		ExpiresAt: res.AccessExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Refresh handles POST /api/auth/refresh. The refresh token is read from
// its cookie only; any failure clears the auth cookies so the client falls
// back to a clean unauthenticated state.
func (a *AuthAPI) Refresh(c echo.Context) error {
	token, ok := a.cookies.ReadRefreshToken(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, failure("no refresh token provided"))
	}

	res, err := a.svc.Refresh(c.Request().Context(), token)
	if err != nil {
		a.cookies.ClearAuthCookies(c)
		if errors.Is(err, service.ErrTokenReuseOrExpired) {
			return c.JSON(http.StatusUnauthorized, failure(service.ErrTokenReuseOrExpired.Error()))
		}
		// A store failure mid-rotation may indicate compromise; the client
		// is forced through the logout path rather than retried.
		log.Error().Err(err).Msg("refresh rotation failed")
		return c.JSON(http.StatusUnauthorized, failure("refresh failed"))
	}

	a.cookies.SetAuthCookies(c, TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	})
	return c.JSON(http.StatusOK, authResponse{
		Success:   true,
		User:      toUserView(res.User),
		ExpiresAt: res.AccessExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout. Always succeeds from the client's
// perspective: cookies are cleared even when no valid token was presented.
func (a *AuthAPI) Logout(c echo.Context) error {
	if token, ok := a.cookies.ReadRefreshToken(c); ok {
		if err := a.svc.RevokeRefreshToken(c.Request().Context(), token); err != nil {
			log.Error().Err(err).Msg("refresh token revocation failed during logout")
		}
	}
	a.cookies.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

// LogoutAll handles POST /api/auth/logout-all. Requires a valid access
// token; revokes every refresh token for the subject.
func (a *AuthAPI) LogoutAll(c echo.Context) error {
	user := CurrentUser(c)
	if err := a.svc.RevokeAllUserTokens(c.Request().Context(), user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("logout-all failed")
		return c.JSON(http.StatusInternalServerError, failure("logout failed"))
	}
	a.cookies.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

// Me handles GET /api/auth/me.
func (a *AuthAPI) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, authResponse{Success: true, User: toUserView(CurrentUser(c))})
}

// Register handles POST /api/auth/register.
func (a *AuthAPI) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failure("invalid request body"))
	}

	user, err := a.svc.Register(c.Request().Context(), service.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			return c.JSON(http.StatusBadRequest, failure(service.ErrDuplicateEmail.Error()))
		}
		return c.JSON(http.StatusBadRequest, failure(err.Error()))
	}
	return c.JSON(http.StatusCreated, authResponse{Success: true, User: toUserView(user)})
}
