package auth

import (
	"errors"
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the session token is missing, malformed,
	// signed with another key, or revoked.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the session token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "token"

// SessionConfig holds session token configuration.
type SessionConfig struct {
	SecretKey string
	Issuer    string
	Duration  time.Duration
}

// DefaultSessionConfig returns a seven-day session configuration.
// The secret key must be replaced outside development.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SecretKey: "dev-secret-change-me",
		Issuer:    "ai-todo-app",
		Duration:  7 * 24 * time.Hour,
	}
}

// SessionClaims are the claims carried by a session token. Version must match
// the account's TokenVersion for the session to be accepted.
type SessionClaims struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	config SessionConfig
}

// NewSessionManager creates a SessionManager with the given configuration.
func NewSessionManager(config SessionConfig) *SessionManager {
	return &SessionManager{config: config}
}

// Duration returns the lifetime of issued tokens.
func (m *SessionManager) Duration() time.Duration {
	return m.config.Duration
}

// Issue signs a session token for the account.
func (m *SessionManager) Issue(account *domain.Account) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.Duration)
	claims := SessionClaims{
		UserID:  account.ID,
		Email:   account.Email,
		Version: account.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims.
func (m *SessionManager) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.config.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
