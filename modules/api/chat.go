package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	"github.com/Codewithsaffy/ai-todo-app/modules/ratelimit"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// chatFailureText ends a stream whose turn failed after the response started.
const chatFailureText = "\n\n_Sorry, something went wrong while answering. Please try again._"

// Assistant is the part of the assistant module the HTTP surface uses.
type Assistant interface {
	Enabled() bool
	Chat(ctx context.Context, ownerID string, history []assistant.Message, sink assistant.Sink) (*assistant.Result, error)
	MCPHandler(auth assistant.Authenticator) http.Handler
}

// RateLimiter checks the per-account chat limit.
type RateLimiter interface {
	Allow(ctx context.Context, accountID string) (*ratelimit.Result, error)
}

// maxQueuedTurns bounds the socket messages waiting behind a running turn.
const maxQueuedTurns = 4

// ChatHandlers serve the streamed chat routes.
type ChatHandlers struct {
	base      context.Context
	assistant Assistant
	limiter   RateLimiter
	logger    *slog.Logger
}

// NewChatHandlers creates chat handlers. Turns run under contexts derived from
// base, so cancelling base aborts every turn in flight. limiter may be nil.
func NewChatHandlers(base context.Context, a Assistant, limiter RateLimiter) *ChatHandlers {
	return &ChatHandlers{base: base, assistant: a, limiter: limiter, logger: slog.Default()}
}

// toHistory validates the client history and converts it for the assistant.
func toHistory(messages []ChatMessage) ([]assistant.Message, error) {
	if len(messages) == 0 {
		return nil, ErrInvalidChat
	}
	history := make([]assistant.Message, 0, len(messages))
	for _, m := range messages {
		var role assistant.Role
		switch m.Role {
		case "user":
			role = assistant.RoleUser
		case "assistant":
			role = assistant.RoleAssistant
		default:
			return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidChat, m.Role)
		}
		history = append(history, assistant.Message{Role: role, Content: m.Content})
	}
	last := history[len(history)-1]
	if last.Role != assistant.RoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, ErrInvalidChat
	}
	return history, nil
}

// chatError is what a client sees for a failed turn.
func chatError(err error) error {
	if errors.Is(err, assistant.ErrModelNotConfigured) {
		return assistant.ErrModelNotConfigured
	}
	return ErrChatFailed
}

type turnOutcome struct {
	result *assistant.Result
	err    error
}

// Stream handles POST /api/chat. The answer is streamed as markdown text.
// The handler waits for the first piece of text: a turn that fails before
// it gets a JSON error and status, later failures end the stream with a
// short notice.
func (h *ChatHandlers) Stream(c *fiber.Ctx) error {
	if h.assistant == nil || !h.assistant.Enabled() {
		return writeError(c, assistant.ErrModelNotConfigured)
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, ErrInvalidBody)
	}
	history, err := toHistory(req.Messages)
	if err != nil {
		return writeError(c, err)
	}

	ownerID := accountID(c)
	ctx, cancel := context.WithCancel(h.base)

	chunks := make(chan string)
	done := make(chan turnOutcome, 1)
	go func() {
		result, err := h.assistant.Chat(ctx, ownerID, history, func(text string) error {
			select {
			case chunks <- text:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		done <- turnOutcome{result: result, err: err}
	}()

	var first string
	select {
	case first = <-chunks:
	case out := <-done:
		cancel()
		if out.err != nil {
			h.logger.Warn("Chat turn failed", "account", ownerID, "error", out.err)
			return writeError(c, chatError(out.err))
		}
		h.logFinished(ownerID, out.result)
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		return c.SendString("")
	}

	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		write := func(text string) error {
			if _, err := w.WriteString(text); err != nil {
				return err
			}
			return w.Flush()
		}

		writeErr := write(first)
		for writeErr == nil {
			select {
			case text := <-chunks:
				writeErr = write(text)
			case out := <-done:
				if out.err != nil {
					h.logger.Warn("Chat turn failed", "account", ownerID, "error", out.err)
					_ = write(chatFailureText)
					return
				}
				h.logFinished(ownerID, out.result)
				return
			}
		}

		// The client is gone; stop the turn and wait for it to unwind.
		cancel()
		out := <-done
		h.logger.Info("Chat client disconnected", "account", ownerID, "error", out.err)
	})
	return nil
}

func (h *ChatHandlers) logFinished(ownerID string, result *assistant.Result) {
	if result == nil {
		return
	}
	h.logger.Info("Chat turn finished", "account", ownerID,
		"steps", result.Steps, "tools", len(result.Invocations), "truncated", result.Truncated)
}

// RequireUpgrade lets only websocket upgrades through.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// socketWriter serializes writes from the turn loop and the reader.
type socketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *socketWriter) send(event ChatEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(event)
}

// Socket handles /api/chat/ws. Each client message carries the full history;
// the turns on one connection run one after another. A reader goroutine keeps
// watching the connection so a close cancels the running turn.
func (h *ChatHandlers) Socket(conn *websocket.Conn) {
	ownerID, _ := conn.Locals(AccountIDKey).(string)
	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	out := &socketWriter{conn: conn}
	turns := make(chan []byte, maxQueuedTurns)
	readerDone := make(chan struct{})

	h.logger.Info("Chat socket connected", "account", ownerID)
	go func() {
		defer close(readerDone)
		defer close(turns)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("Chat socket error", "account", ownerID, "error", err)
				}
				return
			}
			select {
			case turns <- data:
			default:
				_ = out.send(ChatEvent{Type: "error", Message: ErrRateLimited.Error()})
			}
		}
	}()

	for data := range turns {
		if ctx.Err() != nil {
			break
		}
		if err := h.socketTurn(ctx, out, ownerID, data); err != nil {
			if ctx.Err() != nil {
				break
			}
			_, message := statusFor(err)
			if writeErr := out.send(ChatEvent{Type: "error", Message: message}); writeErr != nil {
				break
			}
		}
	}

	_ = conn.Close()
	<-readerDone
	h.logger.Info("Chat socket disconnected", "account", ownerID)
}

func (h *ChatHandlers) socketTurn(ctx context.Context, out *socketWriter, ownerID string, data []byte) error {
	if h.assistant == nil || !h.assistant.Enabled() {
		return assistant.ErrModelNotConfigured
	}

	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ErrInvalidBody
	}
	history, err := toHistory(req.Messages)
	if err != nil {
		return err
	}

	if h.limiter != nil {
		res, err := h.limiter.Allow(ctx, ownerID)
		if err != nil {
			h.logger.Warn("Rate limit check failed", "account", ownerID, "error", err)
		} else if !res.Allowed {
			return ErrRateLimited
		}
	}

	result, err := h.assistant.Chat(ctx, ownerID, history, func(text string) error {
		return out.send(ChatEvent{Type: "chunk", Text: text})
	})
	if err != nil {
		h.logger.Warn("Chat turn failed", "account", ownerID, "error", err)
		return chatError(err)
	}
	h.logFinished(ownerID, result)
	return out.send(ChatEvent{Type: "done"})
}
