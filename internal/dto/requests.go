package dto

import (
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email" validate:"required,email"`
	Password string  `json:"password" binding:"required,min=8" validate:"required,min=8"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

// ChangePasswordRequest represents a password change for a signed-in user
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required" validate:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8" validate:"required,min=8"`
}

// ResetRequestRequest asks for a password reset token by email
type ResetRequestRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
}

// ResetConfirmRequest consumes a reset token and sets a new password
type ResetConfirmRequest struct {
	Email       string `json:"email" binding:"required,email" validate:"required,email"`
	Token       string `json:"token" binding:"required" validate:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8" validate:"required,min=8"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	SessionToken string   `json:"session_token"`
	ExpiresAt    string   `json:"expires_at"`
	User         UserInfo `json:"user"`
}

// UserInfo represents user information in response
type UserInfo struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// UserResponse represents a user response
type UserResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            *string `json:"name"`
	Image           *string `json:"image"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastLoginAt     *string `json:"last_login_at"`
	IsEmailVerified bool    `json:"is_email_verified"`
}

// AuthorizeResponse carries the provider consent URL for an OAuth flow
type AuthorizeResponse struct {
	URL string `json:"url"`
}

// ProvidersResponse lists the configured OAuth providers
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// NewUserInfo maps a domain user to its response shape
func NewUserInfo(u *domain.User) UserInfo {
	return UserInfo{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Image: u.Image,
	}
}

// NewUserResponse maps a domain user to the full profile response
func NewUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Image:           u.Image,
		CreatedAt:       u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       u.UpdatedAt.Format(time.RFC3339),
		IsEmailVerified: u.IsEmailVerified,
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &s
	}
	return resp
}
