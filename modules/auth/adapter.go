package auth

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort is the port other modules use to reach the auth module.
type AuthPort interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
	VerifyEmail(ctx context.Context, token string) error
	WhoAmI(ctx context.Context, token string) (*domain.PublicAccount, error)
	Authenticate(ctx context.Context, token string) (*domain.Claims, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{container: container}
}

// call invokes a request-reply service of the auth module.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// Register creates an account and triggers the verification email.
func (a *AuthAdapter) Register(ctx context.Context, name, email, password string) error {
	req := RegisterRequest{Name: name, Email: email, Password: password}
	var resp RegisterResponse
	return call(ctx, a.container, "register", &req, &resp)
}

// Login exchanges credentials for a session.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*Session, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp LoginResponse
	if err := call(ctx, a.container, "login", &req, &resp); err != nil {
		return nil, err
	}
	return &Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt}, nil
}

// Logout revokes the session behind token.
func (a *AuthAdapter) Logout(ctx context.Context, token string) error {
	req := TokenRequest{Token: token}
	var resp LogoutResponse
	return call(ctx, a.container, "logout", &req, &resp)
}

// VerifyEmail redeems a verification token.
func (a *AuthAdapter) VerifyEmail(ctx context.Context, token string) error {
	req := VerifyEmailRequest{Token: token}
	var resp VerifyEmailResponse
	return call(ctx, a.container, "verify-email", &req, &resp)
}

// WhoAmI returns the account behind a session token.
func (a *AuthAdapter) WhoAmI(ctx context.Context, token string) (*domain.PublicAccount, error) {
	req := TokenRequest{Token: token}
	var resp WhoAmIResponse
	if err := call(ctx, a.container, "whoami", &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

// Authenticate returns the identity behind a session token.
func (a *AuthAdapter) Authenticate(ctx context.Context, token string) (*domain.Claims, error) {
	req := TokenRequest{Token: token}
	var resp AuthenticateResponse
	if err := call(ctx, a.container, "authenticate", &req, &resp); err != nil {
		return nil, err
	}
	return &domain.Claims{UserID: resp.UserID, Email: resp.Email}, nil
}
