package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/auth-engine/internal/domain"
)

// JWTManager signs and verifies self-contained session tokens for the
// stateless session strategy.
type JWTManager struct {
	secret []byte
	maxAge time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		maxAge: maxAge,
	}
}

// GenerateSessionToken mints a signed token embedding the user's identity
// and expiry. Nothing is stored server-side.
func (j *JWTManager) GenerateSessionToken(user *domain.User) (string, error) {
	now := time.Now()

	name := ""
	if user.Name != nil {
		name = *user.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":           user.ID,
		"email":             user.Email,
		"name":              name,
		"is_email_verified": user.IsEmailVerified,
		"exp":               now.Add(j.maxAge).Unix(),
		"iat":               now.Unix(),
	})

	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ValidateSessionToken verifies the token's signature and expiry and returns
// the embedded claims.
func (j *JWTManager) ValidateSessionToken(tokenString string) (*domain.SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid user_id in token")
	}

	email, ok := claims["email"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid email in token")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid exp in token")
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid iat in token")
	}

	sessionClaims := &domain.SessionClaims{
		UserID: userID,
		Email:  email,
		Exp:    int64(exp),
		Iat:    int64(iat),
	}

	if name, ok := claims["name"].(string); ok {
		sessionClaims.Name = name
	}
	if verified, ok := claims["is_email_verified"].(bool); ok {
		sessionClaims.IsEmailVerified = verified
	}

	if sessionClaims.IsExpired() {
		return nil, fmt.Errorf("token is expired")
	}

	return sessionClaims, nil
}

// MaxAge returns the configured session lifetime.
func (j *JWTManager) MaxAge() time.Duration {
	return j.maxAge
}
