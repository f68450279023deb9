package api

import (
	"errors"
	"log"
	"strings"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/gofiber/fiber/v2"
)

var (
	// ErrNotAuthenticated is returned when a route needs a session and has none.
	ErrNotAuthenticated = errors.New("Not authenticated")
	// ErrInvalidBody is returned when the request body cannot be parsed.
	ErrInvalidBody = errors.New("Invalid request body")
	// ErrInvalidChat is returned when the chat history is malformed.
	ErrInvalidChat = errors.New("messages must be a non-empty list ending with a user message")
	// ErrRateLimited is sent to websocket clients over the chat limit.
	ErrRateLimited = errors.New("Too many requests. Please slow down.")
	// ErrChatFailed is sent when a chat turn fails mid-way.
	ErrChatFailed = errors.New("The assistant could not answer. Please try again.")
)

// errorMapping pairs a sentinel with the status it maps to. Errors arrive from
// other modules as strings, so they are matched by message.
type errorMapping struct {
	err    error
	status int
}

var errorMappings = []errorMapping{
	{auth.ErrInvalidVerificationToken, fiber.StatusBadRequest},
	{auth.ErrMissingFields, fiber.StatusBadRequest},
	{auth.ErrInvalidEmail, fiber.StatusBadRequest},
	{auth.ErrPasswordTooLong, fiber.StatusBadRequest},
	{auth.ErrMissingCredentials, fiber.StatusBadRequest},
	{auth.ErrAccountExists, fiber.StatusBadRequest},
	{domain.ErrTitleRequired, fiber.StatusBadRequest},
	{domain.ErrInvalidStatus, fiber.StatusBadRequest},
	{ErrInvalidBody, fiber.StatusBadRequest},
	{ErrInvalidChat, fiber.StatusBadRequest},
	{auth.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{auth.ErrNotVerified, fiber.StatusForbidden},
	{auth.ErrAccountNotFound, fiber.StatusNotFound},
	{task.ErrTaskNotFound, fiber.StatusNotFound},
	{ErrRateLimited, fiber.StatusTooManyRequests},
	{assistant.ErrModelNotConfigured, fiber.StatusServiceUnavailable},
	{ErrChatFailed, fiber.StatusBadGateway},
}

// sessionErrors all answer 401 Not authenticated.
var sessionErrors = []error{ErrNotAuthenticated, auth.ErrInvalidToken, auth.ErrExpiredToken}

// statusFor returns the HTTP status and client message for err. Unknown errors
// give 500 with a generic message.
func statusFor(err error) (int, string) {
	msg := err.Error()
	for _, e := range sessionErrors {
		if errors.Is(err, e) || strings.Contains(msg, e.Error()) {
			return fiber.StatusUnauthorized, ErrNotAuthenticated.Error()
		}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) || strings.Contains(msg, m.err.Error()) {
			return m.status, m.err.Error()
		}
	}
	return fiber.StatusInternalServerError, "Internal server error"
}

// writeError sends err as {"error": message}. Internal details are only logged.
func writeError(c *fiber.Ctx, err error) error {
	status, message := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("[api] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

// customErrorHandler handles errors returned by handlers and fiber itself.
func customErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	return writeError(c, err)
}
