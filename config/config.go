// Package config loads application settings from the environment.
//
// A .env file in the working directory is read first when present; values that
// are already set in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is used when JWT_SECRET_KEY is unset. It must never be used
// in production.
const DefaultJWTSecret = "dev-secret-change-me"

var (
	// ErrInvalid is returned when a setting cannot be parsed.
	ErrInvalid = errors.New("invalid config")
	// ErrInsecureSecret is returned when production runs with the default JWT secret.
	ErrInsecureSecret = errors.New("JWT_SECRET_KEY must be set in production")
)

// Config holds every setting the application reads at startup.
type Config struct {
	Env     string
	HTTP    HTTPConfig
	DB      DBConfig
	Auth    AuthConfig
	Model   ModelConfig
	Redis   RedisConfig
	Mail    MailConfig
	Tracing TracingConfig
}

// HTTPConfig configures the fiber server.
type HTTPConfig struct {
	Addr    string
	BaseURL string
}

// DBConfig configures the sqlite database shared by the auth and task modules.
type DBConfig struct {
	Path  string
	Debug bool
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	SecretKey string
	Issuer    string
}

// ModelConfig configures the hosted language model and the tool-calling loop.
type ModelConfig struct {
	APIKey   string
	Name     string
	MaxSteps int
	Timeout  time.Duration
}

// RedisConfig configures the cache plugin and the chat rate limiter.
// An empty Addr disables both.
type RedisConfig struct {
	Addr       string
	ChatLimit  int
	ChatWindow time.Duration
}

// MailConfig configures outbound verification mail. An empty SMTPHost makes
// the mailer log messages instead of sending them.
type MailConfig struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	MaxRetries int
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	OTLPEndpoint string
	Stdout       bool
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Env:  "development",
		HTTP: HTTPConfig{Addr: ":3000", BaseURL: "http://localhost:3000"},
		DB:   DBConfig{Path: "ai_todo.db"},
		Auth: AuthConfig{SecretKey: DefaultJWTSecret, Issuer: "ai-todo-app"},
		Model: ModelConfig{
			Name:     "gemini-2.0-flash",
			MaxSteps: 5,
			Timeout:  60 * time.Second,
		},
		Redis: RedisConfig{ChatLimit: 20, ChatWindow: time.Minute},
		Mail:  MailConfig{SMTPPort: 587, From: "no-reply@localhost", MaxRetries: 3},
	}
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: .env: %v", ErrInvalid, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("APP_ENV", &cfg.Env)
	r.str("HTTP_ADDR", &cfg.HTTP.Addr)
	r.str("APP_BASE_URL", &cfg.HTTP.BaseURL)

	r.str("DB_PATH", &cfg.DB.Path)
	r.boolean("DB_DEBUG", &cfg.DB.Debug)

	r.str("JWT_SECRET_KEY", &cfg.Auth.SecretKey)
	r.str("JWT_ISSUER", &cfg.Auth.Issuer)

	r.str("GEMINI_API_KEY", &cfg.Model.APIKey)
	r.str("GEMINI_MODEL", &cfg.Model.Name)
	r.integer("ASSISTANT_MAX_STEPS", &cfg.Model.MaxSteps)
	r.duration("ASSISTANT_MODEL_TIMEOUT", &cfg.Model.Timeout)

	r.str("REDIS_ADDR", &cfg.Redis.Addr)
	r.integer("CHAT_RATE_LIMIT", &cfg.Redis.ChatLimit)
	r.duration("CHAT_RATE_WINDOW", &cfg.Redis.ChatWindow)

	r.str("SMTP_HOST", &cfg.Mail.SMTPHost)
	r.integer("SMTP_PORT", &cfg.Mail.SMTPPort)
	r.str("SMTP_USERNAME", &cfg.Mail.Username)
	r.str("SMTP_PASSWORD", &cfg.Mail.Password)
	r.str("MAIL_FROM", &cfg.Mail.From)
	r.integer("MAIL_MAX_RETRIES", &cfg.Mail.MaxRetries)

	r.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)
	r.boolean("OTEL_TRACES_STDOUT", &cfg.Tracing.Stdout)

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Model.MaxSteps < 1 {
		return fmt.Errorf("%w: ASSISTANT_MAX_STEPS must be at least 1", ErrInvalid)
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("%w: ASSISTANT_MODEL_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Redis.ChatLimit < 1 {
		return fmt.Errorf("%w: CHAT_RATE_LIMIT must be at least 1", ErrInvalid)
	}
	if c.Auth.SecretKey == DefaultJWTSecret {
		if c.IsProduction() {
			return ErrInsecureSecret
		}
		log.Println("[config] Warning: using the development JWT secret; set JWT_SECRET_KEY")
	}
	return nil
}

// reader collects the first parse error so callers can read every key in a row.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		return
	}
	*dst = n
}

func (r *reader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		return
	}
	*dst = b
}

func (r *reader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok || r.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		return
	}
	*dst = d
}
