package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prperemyshlev/auth-engine/internal/dto"
	"github.com/prperemyshlev/auth-engine/internal/service"
)

// AuthHandler exposes the engine's flows over HTTP
type AuthHandler struct {
	engine  service.AuthEngine
	states  *service.StateCache
	baseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(engine service.AuthEngine, states *service.StateCache, baseURL string) *AuthHandler {
	return &AuthHandler{
		engine:  engine,
		states:  states,
		baseURL: baseURL,
	}
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: validationErr.Message,
			Details: gin.H{"field": validationErr.Field},
		})
		return
	}

	var configErr *service.ConfigurationError
	if errors.As(err, &configErr) {
		c.JSON(http.StatusNotImplemented, dto.ErrorResponse{
			Error:   "Not available",
			Message: configErr.Message,
		})
		return
	}

	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, dto.ErrorResponse{
			Error:   authErr.Code,
			Message: authErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "something went wrong",
	})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, h.engine.SessionCookie(token))
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, h.engine.LogoutCookie())
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.engine.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if !result.Success {
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: result.Error,
		})
		return
	}

	// Sign the fresh account in so the client gets a session right away.
	signIn, err := h.engine.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil || !signIn.Success {
		c.JSON(http.StatusCreated, gin.H{"user": dto.NewUserInfo(result.User)})
		return
	}

	h.setSessionCookie(c, signIn.Token)
	c.JSON(http.StatusCreated, dto.AuthResponse{
		SessionToken: signIn.Token,
		ExpiresAt:    signIn.Session.ExpiresAt.Format(time.RFC3339),
		User:         dto.NewUserInfo(signIn.User),
	})
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.engine.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if !result.Success {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: result.Error,
		})
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, dto.AuthResponse{
		SessionToken: result.Token,
		ExpiresAt:    result.Session.ExpiresAt.Format(time.RFC3339),
		User:         dto.NewUserInfo(result.User),
	})
}

// Logout handles user logout
// @Summary Logout user
// @Description Revoke the current session and clear the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := sessionTokenFromRequest(c)

	if err := h.engine.SignOut(c.Request.Context(), token); err != nil {
		writeServiceError(c, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Description Get information about the current authenticated user
// @Tags auth
// @Security SessionAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "No active session",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(session.User))
}

// ChangePassword handles a password change for a signed-in user
// @Summary Change password
// @Description Change the current user's password after re-verifying the old one
// @Tags auth
// @Security SessionAuth
// @Accept json
// @Produce json
// @Param request body dto.ChangePasswordRequest true "Password change request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "No active session",
		})
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.engine.UpdatePassword(c.Request.Context(), session.User.ID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password updated successfully",
	})
}

// RequestPasswordReset issues a reset token
// @Summary Request a password reset
// @Description Issue a reset token for the email; responds identically whether the account exists
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetRequestRequest true "Reset request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/password/reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.ResetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	// The token goes out via email delivery, never in the response, so the
	// endpoint cannot be used to probe for accounts.
	if _, err := h.engine.GeneratePasswordResetToken(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "If the account exists, a reset link has been sent",
	})
}

// ConfirmPasswordReset consumes a reset token
// @Summary Confirm a password reset
// @Description Set a new password using a valid reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetConfirmRequest true "Reset confirmation"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/password/reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.engine.ResetPassword(c.Request.Context(), req.Email, req.NewPassword, req.Token); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password has been reset",
	})
}

// Providers lists configured OAuth providers
// @Summary List OAuth providers
// @Tags oauth
// @Produce json
// @Success 200 {object} dto.ProvidersResponse
// @Router /auth/oauth/providers [get]
func (h *AuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ProvidersResponse{
		Providers: h.engine.Providers(),
	})
}

func (h *AuthHandler) callbackURL(provider string) string {
	return fmt.Sprintf("%s/api/v1/auth/oauth/%s/callback", h.baseURL, provider)
}

// OAuthAuthorize begins an OAuth flow
// @Summary Begin an OAuth flow
// @Description Issue a state value and redirect to the provider's consent page
// @Tags oauth
// @Produce json
// @Param provider path string true "Provider id"
// @Success 307
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider} [get]
func (h *AuthHandler) OAuthAuthorize(c *gin.Context) {
	provider := c.Param("provider")

	state, err := h.states.Issue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to start oauth flow",
		})
		return
	}

	url, err := h.engine.AuthorizationURL(provider, h.callbackURL(provider), state)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url)
}

// OAuthCallback completes an OAuth flow
// @Summary Complete an OAuth flow
// @Description Verify the state, exchange the code and establish a session
// @Tags oauth
// @Produce json
// @Param provider path string true "Provider id"
// @Param code query string true "Authorization code"
// @Param state query string true "State value"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "missing authorization code",
		})
		return
	}

	ok, err := h.states.Consume(c.Request.Context(), state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to verify oauth state",
		})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "invalid or expired state",
		})
		return
	}

	result, err := h.engine.HandleOAuthCallback(c.Request.Context(), provider, h.callbackURL(provider), code)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, dto.AuthResponse{
		SessionToken: result.Token,
		ExpiresAt:    result.Session.ExpiresAt.Format(time.RFC3339),
		User:         dto.NewUserInfo(result.User),
	})
}
