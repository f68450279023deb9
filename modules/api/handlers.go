package api

import (
	"log"
	"strings"
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains the HTTP handlers for the auth and task routes.
type Handlers struct {
	authPort     auth.AuthPort
	taskPort     task.TaskPort
	secureCookie bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, taskPort task.TaskPort, secureCookie bool) *Handlers {
	return &Handlers{
		authPort:     authPort,
		taskPort:     taskPort,
		secureCookie: secureCookie,
	}
}

// Register handles POST /api/auth/register.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, ErrInvalidBody)
	}

	if err := h.authPort.Register(c.UserContext(), req.Name, req.Email, req.Password); err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(MessageResponse{
		Message: "Registration successful. Please check your email to verify your account.",
	})
}

// Login handles POST /api/auth/login and sets the session cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, ErrInvalidBody)
	}

	session, err := h.authPort.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	h.setSessionCookie(c, session.Token, session.ExpiresAt)
	return c.JSON(MessageResponse{Message: "Login successful"})
}

// Logout handles POST /api/auth/logout. The cookie is cleared even when the
// session could not be revoked.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if token := sessionToken(c); token != "" {
		if err := h.authPort.Logout(c.UserContext(), token); err != nil {
			log.Printf("[api] Logout could not revoke session: %v", err)
		}
	}

	h.setSessionCookie(c, "", time.Unix(0, 0))
	return c.JSON(MessageResponse{Message: "Logout successful"})
}

// Me handles GET /api/auth/me.
func (h *Handlers) Me(c *fiber.Ctx) error {
	token := sessionToken(c)
	if token == "" {
		return writeError(c, ErrNotAuthenticated)
	}

	account, err := h.authPort.WhoAmI(c.UserContext(), token)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "User is logged in",
		"user":    account,
	})
}

// VerifyEmail handles GET /api/auth/verify/:token.
func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	if err := h.authPort.VerifyEmail(c.UserContext(), c.Params("token")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Email verified successfully"})
}

func (h *Handlers) setSessionCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// ListTasks handles GET /api/tasks. A non-empty q parameter searches instead.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	var (
		tasks []domain.Task
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		tasks, err = h.taskPort.SearchTasks(c.UserContext(), accountID(c), q)
	} else {
		tasks, err = h.taskPort.ListTasks(c.UserContext(), accountID(c))
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

// CreateTask handles POST /api/tasks.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, ErrInvalidBody)
	}

	t, err := h.taskPort.CreateTask(c.UserContext(), accountID(c), req.Title, req.Description, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": t})
}

// GetTask handles GET /api/tasks/:id.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	t, err := h.taskPort.GetTask(c.UserContext(), accountID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"task": t})
}

// UpdateTask handles PATCH /api/tasks/:id.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var patch domain.Patch
	if err := c.BodyParser(&patch); err != nil {
		return writeError(c, ErrInvalidBody)
	}

	t, err := h.taskPort.UpdateTask(c.UserContext(), accountID(c), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"task": t})
}

// DeleteTask handles DELETE /api/tasks/:id. Deleting a missing task succeeds
// with deleted set to false.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	deleted, err := h.taskPort.DeleteTask(c.UserContext(), accountID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	message := "Task deleted successfully."
	if !deleted {
		message = "No task found with that id."
	}
	return c.JSON(fiber.Map{"deleted": deleted, "message": message})
}
