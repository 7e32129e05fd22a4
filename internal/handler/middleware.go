package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prperemyshlev/auth-engine/internal/dto"
	"github.com/prperemyshlev/auth-engine/internal/service"
)

const sessionContextKey = "session"

// sessionTokenFromRequest pulls the session token from the cookie, falling
// back to a Bearer header for non-browser clients.
func sessionTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(service.SessionCookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// currentSession returns the session stored by AuthMiddleware, or nil.
func currentSession(c *gin.Context) *service.SessionData {
	v, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	session, _ := v.(*service.SessionData)
	return session
}

// AuthMiddleware resolves the session token and adds the session to context
func AuthMiddleware(engine service.AuthEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionTokenFromRequest(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Session token is required",
			})
			c.Abort()
			return
		}

		session, err := engine.ValidateSession(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Failed to validate session",
			})
			c.Abort()
			return
		}
		if session == nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired session",
			})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, session)
		c.Set("user_id", session.User.ID)
		c.Set("email", session.User.Email)

		c.Next()
	}
}
