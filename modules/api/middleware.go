package api

import (
	"errors"
	"strings"

	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// AccountIDKey holds the authenticated account id in c.Locals.
	AccountIDKey = "userId"
	// SessionTokenKey holds the raw session token in c.Locals.
	SessionTokenKey = "sessionToken"
)

// sessionToken reads the session cookie, falling back to a Bearer header for
// non-browser clients.
func sessionToken(c *fiber.Ctx) string {
	if token := c.Cookies(auth.SessionCookieName); token != "" {
		return token
	}
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// SessionMiddleware rejects requests without a valid session and stores the
// account id for the handlers.
func SessionMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return writeError(c, ErrNotAuthenticated)
		}

		claims, err := authPort.Authenticate(c.UserContext(), token)
		if err != nil {
			// A valid token for a deleted account is still no session.
			if errors.Is(err, auth.ErrAccountNotFound) || strings.Contains(err.Error(), auth.ErrAccountNotFound.Error()) {
				return writeError(c, ErrNotAuthenticated)
			}
			return writeError(c, err)
		}

		c.Locals(AccountIDKey, claims.UserID)
		c.Locals(SessionTokenKey, token)
		return c.Next()
	}
}

func accountID(c *fiber.Ctx) string {
	id, _ := c.Locals(AccountIDKey).(string)
	return id
}
