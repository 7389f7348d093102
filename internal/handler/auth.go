package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/model"
	"github.com/soundvault/backend/internal/observability"
	"github.com/soundvault/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.Summary())
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, provenance(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, model.AuthResponse{
		User:      user.Summary(),
		ExpiresIn: pair.AccessExpiresIn,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.CookieConfig().RefreshName)
	user, pair, err := h.svc.Refresh(c.Request.Context(), refreshToken, provenance(c))
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalidated) {
			h.clearSessionCookies(c)
		}
		writeAuthError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, model.AuthResponse{
		User:      user.Summary(),
		ExpiresIn: pair.AccessExpiresIn,
	})
}

// Logout always succeeds and always clears cookies; registry cleanup is best
// effort.
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.CookieConfig().RefreshName)
	_ = h.svc.Logout(c.Request.Context(), refreshToken)
	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, model.AuthLogoutResponse{Status: "logged_out"})
}

// Me verifies the access token only. An expired access token is a 401 that
// the client answers with a refresh call, not an error condition.
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, model.AuthMeResponse{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	})
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, pair *service.TokenPair) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.AccessName, pair.AccessToken, cfg.AccessMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(cfg.RefreshName, pair.RefreshToken, cfg.RefreshMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.AccessName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(cfg.RefreshName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func provenance(c *gin.Context) service.Provenance {
	return service.Provenance{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "temporarily locked"})
	case errors.Is(err, service.ErrMissingToken), errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrSessionInvalidated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session invalidated"})
	case errors.Is(err, service.ErrMediaMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
	default:
		observability.CaptureError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
