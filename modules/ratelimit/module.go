package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Config configures the chat limiter.
type Config struct {
	RedisAddr string
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// Module owns the Redis client behind the chat limiter.
type Module struct {
	config  Config
	client  *redis.Client
	limiter *Limiter
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a rate limit module. KeyPrefix defaults to "ratelimit:chat:".
func NewModule(config Config) *Module {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:chat:"
	}
	return &Module{config: config}
}

func (m *Module) Name() string {
	return "ratelimit"
}

func (m *Module) Start(ctx context.Context) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:         m.config.RedisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", m.config.RedisAddr, err)
	}

	m.limiter = NewLimiter(m.client, m.config.KeyPrefix, m.config.Limit, m.config.Window)
	log.Printf("[ratelimit] Module started (%d requests per %s)", m.config.Limit, m.config.Window)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[ratelimit] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[ratelimit] Module stopped")
	return nil
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: "redis unreachable"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"limit":  m.config.Limit,
			"window": m.config.Window.String(),
		},
	}
}

// Allow checks the limit for one account. Before Start every request is
// allowed.
func (m *Module) Allow(ctx context.Context, accountID string) (*Result, error) {
	if m.limiter == nil {
		return &Result{Allowed: true, Limit: m.config.Limit, Remaining: m.config.Limit}, nil
	}
	return m.limiter.Allow(ctx, "account:"+accountID)
}

// Middleware limits requests per account, reading the account id from
// c.Locals(localsKey). It passes every request through before Start.
func (m *Module) Middleware(localsKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.limiter == nil {
			return c.Next()
		}
		return Handler(m.limiter, LocalsKey(localsKey))(c)
	}
}
