package account

import (
	"time"
)

// Account is a registered user.
type Account struct {
	ID                string  `gorm:"primaryKey;type:text"`
	Name              string  `gorm:"not null;type:text"`
	Email             string  `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash      string  `gorm:"not null;type:text"`
	IsVerified        bool    `gorm:"not null;default:false"`
	VerificationToken *string `gorm:"uniqueIndex;type:text"`
	TokenVersion      int     `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for the Account entity.
func (Account) TableName() string {
	return "accounts"
}

// Public returns the account without its secrets.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// PublicAccount is the account as returned to clients.
type PublicAccount struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Claims identifies the account behind a verified session.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
