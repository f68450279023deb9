package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// AccountRegisteredEvent is emitted when a new, unverified account is stored.
type AccountRegisteredEvent struct {
	AccountID         string    `json:"account_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	VerificationToken string    `json:"verification_token"`
	RegisteredAt      time.Time `json:"registered_at"`
}

// AccountRegisteredV1 is the typed event definition for registration.
// Subject: events.auth.v1.account-registered
var AccountRegisteredV1 = helper.EventDefinition[AccountRegisteredEvent](
	"auth", "AccountRegistered", "v1",
)

// AccountVerifiedEvent is emitted when a verification token is redeemed.
type AccountVerifiedEvent struct {
	AccountID  string    `json:"account_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

// AccountVerifiedV1 is the typed event definition for email verification.
// Subject: events.auth.v1.account-verified
var AccountVerifiedV1 = helper.EventDefinition[AccountVerifiedEvent](
	"auth", "AccountVerified", "v1",
)
