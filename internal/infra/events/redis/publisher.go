// Package redis publishes service audit entries to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trafficcap/internal/core"
)

const (
	// publishTimeout bounds a single PUBLISH issued by the worker.
	publishTimeout = 2 * time.Second
	// DefaultQueueSize is the number of events buffered ahead of the worker.
	DefaultQueueSize = 256
)

// Publisher is the subset of the go-redis client used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
}

// Event is the JSON message sent for each audit entry.
type Event struct {
	Operation  string           `json:"operation"`
	Entity     core.EntityType  `json:"entity"`
	Action     core.Action      `json:"action"`
	EntityID   string           `json:"entity_id,omitempty"`
	Status     core.AuditStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	Timestamp  time.Time        `json:"timestamp"`
}

// AuditPublisher implements core.AuditRecorder. Record only enqueues; a
// single worker publishes in the background. Full-queue drops and publish
// failures are logged and counted and never fail the audited operation.
type AuditPublisher struct {
	client  Publisher
	channel string
	logger  core.Logger
	queue   chan message
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	sent    atomic.Int64
	failed  atomic.Int64
}

type message struct {
	operation string
	payload   []byte
}

// PublisherOption configures an AuditPublisher.
type PublisherOption func(*AuditPublisher)

// WithQueueSize sets the event buffer size. Values below 1 are ignored.
func WithQueueSize(n int) PublisherOption {
	return func(p *AuditPublisher) {
		if n > 0 {
			p.queue = make(chan message, n)
		}
	}
}

// NewAuditPublisher returns a recorder publishing to channel and starts its
// worker. A nil logger discards. Call Close to drain and stop the worker.
func NewAuditPublisher(client Publisher, channel string, logger core.Logger, opts ...PublisherOption) *AuditPublisher {
	if logger == nil {
		logger = discardLogger{}
	}
	p := &AuditPublisher{client: client, channel: channel, logger: logger, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue == nil {
		p.queue = make(chan message, DefaultQueueSize)
	}
	go p.run()
	return p
}

// Record implements core.AuditRecorder. It never blocks on the broker.
func (p *AuditPublisher) Record(_ context.Context, entry core.AuditEntry) {
	payload, err := json.Marshal(Event{
		Operation:  entry.Operation,
		Entity:     entry.Entity,
		Action:     entry.Action,
		EntityID:   entry.EntityID,
		Status:     entry.Status,
		Error:      entry.Error,
		DurationMS: entry.Duration.Milliseconds(),
		Timestamp:  entry.Timestamp,
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("audit event encode failed", "operation", entry.Operation, "error", err)
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.failed.Add(1)
		p.logger.Warn("audit publisher closed", "operation", entry.Operation)
		return
	}
	select {
	case p.queue <- message{operation: entry.Operation, payload: payload}:
	default:
		p.failed.Add(1)
		p.logger.Warn("audit queue full, event dropped", "operation", entry.Operation, "channel", p.channel)
	}
}

func (p *AuditPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.client.Publish(ctx, p.channel, msg.payload).Err()
		cancel()
		if err != nil {
			p.failed.Add(1)
			p.logger.Warn("audit event publish failed", "operation", msg.operation, "channel", p.channel, "error", err)
			continue
		}
		p.sent.Add(1)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (p *AuditPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

// Stats returns how many events were published and how many failed.
func (p *AuditPublisher) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
