package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Codewithsaffy/ai-todo-app/database"
	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
	"github.com/Codewithsaffy/ai-todo-app/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// AuthModule provides account and session services.
type AuthModule struct {
	db       *gorm.DB
	service  *AuthService
	eventBus mono.EventBus
	dbPath   string
	dbDebug  bool
	session  SessionConfig
}

var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.EventEmitterModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates an AuthModule backed by the sqlite file at dbPath.
func NewModule(dbPath string, dbDebug bool, session SessionConfig) *AuthModule {
	return &AuthModule{
		dbPath:  dbPath,
		dbDebug: dbDebug,
		session: session,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

func (m *AuthModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *AuthModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.AccountRegisteredV1.ToBase(),
		events.AccountVerifiedV1.ToBase(),
	}
}

// Start opens the database and builds the service.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := database.Open(m.dbPath, m.dbDebug, &domain.Account{})
	if err != nil {
		return err
	}
	m.db = db

	m.service = NewAuthService(
		NewAccountRepository(db),
		NewPasswordHasher(),
		NewSessionManager(m.session),
	)

	if m.eventBus == nil {
		log.Println("[auth] Warning: eventBus not set, verification emails will not be sent")
	}
	log.Printf("[auth] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if err := database.Close(m.db); err != nil {
		log.Printf("[auth] Error closing database: %v", err)
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	return database.Health(ctx, m.db, m.dbPath)
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "logout", json.Unmarshal, json.Marshal, m.handleLogout,
	); err != nil {
		return fmt.Errorf("failed to register logout service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "verify-email", json.Unmarshal, json.Marshal, m.handleVerifyEmail,
	); err != nil {
		return fmt.Errorf("failed to register verify-email service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "whoami", json.Unmarshal, json.Marshal, m.handleWhoAmI,
	); err != nil {
		return fmt.Errorf("failed to register whoami service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "authenticate", json.Unmarshal, json.Marshal, m.handleAuthenticate,
	); err != nil {
		return fmt.Errorf("failed to register authenticate service: %w", err)
	}

	log.Printf("[auth] Registered services: register, login, logout, verify-email, whoami, authenticate")
	return nil
}

// handleRegister stores the account and hands the verification mail off to
// the event bus. Registration succeeds even if the event cannot be published.
func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	account, err := m.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return RegisterResponse{}, err
	}

	if m.eventBus != nil && account.VerificationToken != nil {
		event := events.AccountRegisteredEvent{
			AccountID:         account.ID,
			Name:              account.Name,
			Email:             account.Email,
			VerificationToken: *account.VerificationToken,
			RegisteredAt:      account.CreatedAt,
		}
		if err := events.AccountRegisteredV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[auth] Warning: failed to publish AccountRegistered event for %s: %v", account.ID, err)
		}
	}

	return RegisterResponse{ID: account.ID, Email: account.Email}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	session, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{Token: session.Token, ExpiresAt: session.ExpiresAt}, nil
}

func (m *AuthModule) handleLogout(ctx context.Context, req TokenRequest, _ *mono.Msg) (LogoutResponse, error) {
	m.service.Logout(ctx, req.Token)
	return LogoutResponse{}, nil
}

func (m *AuthModule) handleVerifyEmail(ctx context.Context, req VerifyEmailRequest, _ *mono.Msg) (VerifyEmailResponse, error) {
	account, err := m.service.Verify(ctx, req.Token)
	if err != nil {
		return VerifyEmailResponse{}, err
	}

	if m.eventBus != nil {
		event := events.AccountVerifiedEvent{
			AccountID:  account.ID,
			Name:       account.Name,
			Email:      account.Email,
			VerifiedAt: time.Now(),
		}
		if err := events.AccountVerifiedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[auth] Warning: failed to publish AccountVerified event for %s: %v", account.ID, err)
		}
	}

	return VerifyEmailResponse{AccountID: account.ID}, nil
}

func (m *AuthModule) handleWhoAmI(ctx context.Context, req TokenRequest, _ *mono.Msg) (WhoAmIResponse, error) {
	account, err := m.service.WhoAmI(ctx, req.Token)
	if err != nil {
		return WhoAmIResponse{}, err
	}
	return WhoAmIResponse{Account: *account}, nil
}

func (m *AuthModule) handleAuthenticate(ctx context.Context, req TokenRequest, _ *mono.Msg) (AuthenticateResponse, error) {
	claims, err := m.service.Authenticate(ctx, req.Token)
	if err != nil {
		return AuthenticateResponse{}, err
	}
	return AuthenticateResponse{UserID: claims.UserID, Email: claims.Email}, nil
}
