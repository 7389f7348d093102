package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/model"
	"github.com/soundvault/backend/internal/service"
)

const authUserKey = "auth_user"

// AuthMiddleware accepts the access token from the session cookie first, then
// from a Bearer header for cookie-less API clients.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		user := resolveAuthUser(c, authService)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the session if one is present but never
// rejects; the stream endpoint decides between token and session itself.
func OptionalAuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := resolveAuthUser(c, authService); user != nil {
			c.Set(authUserKey, user)
		}
		c.Next()
	}
}

func resolveAuthUser(c *gin.Context, authService *service.AuthService) *model.AuthUser {
	token, _ := c.Cookie(authService.CookieConfig().AccessName)
	if token == "" {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	if token == "" {
		return nil
	}

	user, err := authService.ParseAccessToken(token)
	if err != nil {
		return nil
	}
	return user
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Range")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
