package auth

import (
	"context"
	"errors"
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/account"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("User not found")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("User already exists")
	// ErrInvalidVerificationToken is returned for unknown or already used
	// verification tokens.
	ErrInvalidVerificationToken = errors.New("Invalid or expired token")
)

// AccountRepository handles account persistence using GORM.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrAccountExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.first(ctx, ErrAccountNotFound, "id = ?", id)
}

// FindByEmail finds an account by email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.first(ctx, ErrAccountNotFound, "email = ?", email)
}

// FindByVerificationToken finds the unverified account holding token.
func (r *AccountRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.first(ctx, ErrInvalidVerificationToken, "verification_token = ?", token)
}

// MarkVerified flips the verified flag and clears the verification token. It
// reports false when the account was already verified, so a token can only be
// redeemed once even under concurrent requests.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ? AND is_verified = ?", id, false).
		Updates(map[string]any{
			"is_verified":        true,
			"verification_token": nil,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BumpTokenVersion invalidates every session issued for the account so far.
func (r *AccountRepository) BumpTokenVersion(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) first(ctx context.Context, notFound error, query string, args ...any) (*domain.Account, error) {
	var account domain.Account
	result := r.db.WithContext(ctx).Where(query, args...).First(&account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, result.Error
	}
	return &account, nil
}
