package auth

import (
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
)

// RegisterRequest represents an account registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents an account registration response.
type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRequest carries a session token for logout, whoami and authenticate.
type TokenRequest struct {
	Token string `json:"token"`
}

// LogoutResponse represents a logout response.
type LogoutResponse struct{}

// VerifyEmailRequest carries a verification token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmailResponse represents a successful verification.
type VerifyEmailResponse struct {
	AccountID string `json:"account_id"`
}

// WhoAmIResponse carries the public account behind a session.
type WhoAmIResponse struct {
	Account domain.PublicAccount `json:"account"`
}

// AuthenticateResponse carries the identity behind a session.
type AuthenticateResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
