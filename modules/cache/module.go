package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

// PluginModule exposes a Redis-backed CacheService as a mono plugin.
// Plugins start before regular modules and stop after them.
type PluginModule struct {
	container types.ServiceContainer
	storage   storage.Storage
	service   CacheService
	redisAddr string
	prefix    string
	ttl       time.Duration
}

var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the plugin for the Redis server at redisAddr.
func NewPluginModule(redisAddr string) *PluginModule {
	return NewPluginModuleWithConfig(redisAddr, "ai-todo:", 5*time.Minute)
}

// NewPluginModuleWithConfig creates the plugin with a custom key prefix and TTL.
func NewPluginModuleWithConfig(redisAddr, prefix string, ttl time.Duration) *PluginModule {
	return &PluginModule{
		redisAddr: redisAddr,
		prefix:    prefix,
		ttl:       ttl,
	}
}

func (m *PluginModule) Name() string {
	return "cache"
}

// Start connects to Redis. gofiber/storage/redis panics when the server is
// unreachable, so reachability is checked first.
func (m *PluginModule) Start(_ context.Context) error {
	conn, err := net.DialTimeout("tcp", m.redisAddr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("redis not reachable at %s: %w", m.redisAddr, err)
	}
	conn.Close()

	host, port := parseRedisAddr(m.redisAddr)
	m.storage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		PoolSize: 50,
	})
	m.service = NewCacheService(m.storage, m.prefix, m.ttl)
	log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", m.redisAddr, m.prefix, m.ttl)
	return nil
}

func (m *PluginModule) Stop(_ context.Context) error {
	if m.service != nil {
		if err := m.service.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	log.Println("[cache] Plugin stopped")
	return nil
}

func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the cache for consumers. It is nil until Start succeeds.
func (m *PluginModule) Port() CacheService {
	return m.service
}

func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.storage == nil {
		return mono.HealthStatus{Healthy: false, Message: "storage not initialized"}
	}
	if _, err := m.storage.GetWithContext(ctx, "__health_check__"); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.redisAddr,
			"prefix":     m.prefix,
			"ttl":        m.ttl.String(),
		},
	}
}

// parseRedisAddr splits "host:port", falling back to 127.0.0.1:6379.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}
