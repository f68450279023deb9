package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned when the delivery queue has no free slot.
	ErrQueueFull = errors.New("mail queue is full")
	// ErrQueueClosed is returned when messages are enqueued after Stop.
	ErrQueueClosed = errors.New("mail queue is closed")
)

// QueueConfig holds delivery queue configuration.
type QueueConfig struct {
	Size           int
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	SendTimeout    time.Duration
}

// DefaultQueueConfig returns the default queue configuration.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:           100,
		MaxRetries:     3,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  30 * time.Second,
		SendTimeout:    30 * time.Second,
	}
}

// QueueStats is a snapshot of the delivery counters.
type QueueStats struct {
	Pending int   `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// Queue delivers messages on a single background worker, retrying failed
// sends with exponential backoff. Messages that exhaust their retries are
// logged and dropped.
type Queue struct {
	config QueueConfig
	sender Sender
	jobs   chan Message

	sent   atomic.Int64
	failed atomic.Int64

	mu      sync.RWMutex
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewQueue creates a Queue. Call Start before enqueueing.
func NewQueue(config QueueConfig, sender Sender) *Queue {
	if config.Size < 1 {
		config.Size = 1
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Queue{
		config:  config,
		sender:  sender,
		jobs:    make(chan Message, config.Size),
		done:    make(chan struct{}),
		sleepFn: sleep,
	}
}

// Start launches the delivery worker.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	go q.run(workerCtx)
}

// Enqueue schedules msg for delivery without blocking.
func (q *Queue) Enqueue(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting messages and waits for queued ones to be attempted.
// When ctx expires first, in-flight retries are abandoned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	if q.cancel == nil {
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pending: len(q.jobs),
		Sent:    q.sent.Load(),
		Failed:  q.failed.Load(),
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	defer q.cancel()

	for msg := range q.jobs {
		if err := q.deliver(ctx, msg); err != nil {
			q.failed.Add(1)
			log.Printf("[mailer] Giving up on mail to %s (%q): %v", msg.To, msg.Subject, err)
			continue
		}
		q.sent.Add(1)
	}
}

// deliver tries msg up to MaxRetries times.
func (q *Queue) deliver(ctx context.Context, msg Message) error {
	var lastErr error
	for attempt := 1; attempt <= q.config.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := q.retryDelay(attempt - 1)
			log.Printf("[mailer] Retrying mail to %s in %v (attempt %d/%d): %v",
				msg.To, delay, attempt, q.config.MaxRetries, lastErr)
			if err := q.sleepFn(ctx, delay); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, q.config.SendTimeout)
		lastErr = q.sender.Send(sendCtx, msg)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", q.config.MaxRetries, lastErr)
}

// retryDelay is BaseRetryDelay * 2^(retry-1), capped at MaxRetryDelay.
func (q *Queue) retryDelay(retry int) time.Duration {
	delay := float64(q.config.BaseRetryDelay) * math.Pow(2, float64(retry-1))
	if time.Duration(delay) > q.config.MaxRetryDelay {
		return q.config.MaxRetryDelay
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
