package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
	"github.com/google/uuid"
)

var (
	// ErrMissingFields is returned when registration lacks name, email or password.
	ErrMissingFields = errors.New("Missing required fields")
	// ErrInvalidEmail is returned when the email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrPasswordTooLong is returned when the password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrMissingCredentials is returned when login lacks email or password.
	ErrMissingCredentials = errors.New("Email and password are required")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	// ErrNotVerified is returned when an unverified account tries to log in.
	ErrNotVerified = errors.New("Please verify your email before logging in")
)

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService handles registration, verification and sessions.
type AuthService struct {
	repo     *AccountRepository
	hasher   *PasswordHasher
	sessions *SessionManager
	newToken func() (string, error)
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *AccountRepository, hasher *PasswordHasher, sessions *SessionManager) *AuthService {
	return &AuthService{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		newToken: NewVerificationToken,
		now:      time.Now,
	}
}

// Register creates an unverified account holding a fresh verification token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) > MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.Account{
		ID:                uuid.New().String(),
		Name:              name,
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: &token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Verify redeems a verification token. Each token works once.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	account, err := s.repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidVerificationToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}

	ok, err := s.repo.MarkVerified(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify account: %w", err)
	}
	if !ok {
		return nil, ErrInvalidVerificationToken
	}

	account.IsVerified = true
	account.VerificationToken = nil
	return account, nil
}

// Login checks the credentials of a verified account and issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.hasher.VerifyNothing(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsVerified {
		return nil, ErrNotVerified
	}

	if s.hasher.NeedsRehash(account.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := s.repo.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
				log.Printf("[auth] Warning: failed to rehash password for %s: %v", account.ID, err)
			}
		}
	}

	token, expiresAt, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// WhoAmI returns the account behind a session token.
func (s *AuthService) WhoAmI(ctx context.Context, token string) (*domain.PublicAccount, error) {
	account, _, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

// Authenticate returns the identity behind a session token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Claims, error) {
	_, claims, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &domain.Claims{UserID: claims.UserID, Email: claims.Email}, nil
}

// Logout revokes the session when the token is still valid. It never fails:
// clients always end up logged out.
func (s *AuthService) Logout(ctx context.Context, token string) {
	account, _, err := s.resolve(ctx, token)
	if err != nil {
		return
	}
	if err := s.repo.BumpTokenVersion(ctx, account.ID); err != nil {
		log.Printf("[auth] Warning: failed to revoke sessions for %s: %v", account.ID, err)
	}
}

// resolve verifies the token and loads its account. Tokens issued before the
// last logout carry a stale version and are rejected.
func (s *AuthService) resolve(ctx context.Context, token string) (*domain.Account, *SessionClaims, error) {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account.TokenVersion != claims.Version {
		return nil, nil, ErrInvalidToken
	}
	return account, claims, nil
}
