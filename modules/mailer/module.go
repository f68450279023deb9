// Package mailer sends account emails in the background in response to auth
// events.
package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/Codewithsaffy/ai-todo-app/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Config holds mailer configuration.
type Config struct {
	BaseURL string
	SMTP    SMTPConfig
	Queue   QueueConfig
}

// MailerModule turns account events into queued emails.
type MailerModule struct {
	config Config
	sender Sender
	queue  *Queue
}

var _ mono.Module = (*MailerModule)(nil)
var _ mono.EventConsumerModule = (*MailerModule)(nil)
var _ mono.HealthCheckableModule = (*MailerModule)(nil)

// NewModule creates a MailerModule. Without an SMTP host, mail is logged.
func NewModule(config Config) *MailerModule {
	var sender Sender = LogSender{}
	if config.SMTP.Host != "" {
		sender = NewSMTPSender(config.SMTP)
	}
	return NewModuleWithSender(config, sender)
}

// NewModuleWithSender creates a MailerModule that delivers through sender.
func NewModuleWithSender(config Config, sender Sender) *MailerModule {
	return &MailerModule{
		config: config,
		sender: sender,
		queue:  NewQueue(config.Queue, sender),
	}
}

func (m *MailerModule) Name() string {
	return "mailer"
}

func (m *MailerModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.AccountRegisteredV1, m.handleAccountRegistered, m); err != nil {
		return fmt.Errorf("failed to register AccountRegistered consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.AccountVerifiedV1, m.handleAccountVerified, m); err != nil {
		return fmt.Errorf("failed to register AccountVerified consumer: %w", err)
	}

	log.Printf("[mailer] Registered event consumers: AccountRegistered, AccountVerified")
	return nil
}

func (m *MailerModule) handleAccountRegistered(_ context.Context, event events.AccountRegisteredEvent, _ *mono.Msg) error {
	msg, err := VerificationMessage(m.config.BaseURL, event.Email, event.Name, event.VerificationToken)
	if err != nil {
		return fmt.Errorf("failed to build verification mail: %w", err)
	}
	return m.enqueue(msg, event.AccountID)
}

func (m *MailerModule) handleAccountVerified(_ context.Context, event events.AccountVerifiedEvent, _ *mono.Msg) error {
	msg, err := WelcomeMessage(event.Email, event.Name)
	if err != nil {
		return fmt.Errorf("failed to build welcome mail: %w", err)
	}
	return m.enqueue(msg, event.AccountID)
}

// enqueue never fails the event: a dropped mail is logged instead.
func (m *MailerModule) enqueue(msg Message, accountID string) error {
	if err := m.queue.Enqueue(msg); err != nil {
		log.Printf("[mailer] Warning: dropped %q for account %s: %v", msg.Subject, accountID, err)
	}
	return nil
}

func (m *MailerModule) Start(ctx context.Context) error {
	m.queue.Start(ctx)

	transport := "log"
	if _, ok := m.sender.(*SMTPSender); ok {
		transport = "smtp " + m.config.SMTP.Host
	}
	log.Printf("[mailer] Module started (transport: %s, max retries: %d)", transport, m.queue.config.MaxRetries)
	return nil
}

func (m *MailerModule) Stop(ctx context.Context) error {
	if err := m.queue.Stop(ctx); err != nil {
		log.Printf("[mailer] Stopped with undelivered mail: %v", err)
	}
	log.Println("[mailer] Module stopped")
	return nil
}

func (m *MailerModule) Health(_ context.Context) mono.HealthStatus {
	stats := m.queue.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"pending": stats.Pending,
			"sent":    stats.Sent,
			"failed":  stats.Failed,
		},
	}
}
