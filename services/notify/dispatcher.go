// Package notify delivers new-account credentials out of band. Delivery is
// best effort: the dispatcher queues work for background workers and never
// reports delivery failures to the caller that enqueued it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/rcfms-admin/identity"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when the buffer cannot take another job
var ErrQueueFull = errors.New("notification queue full")

// ErrNotStarted is returned when enqueueing before Start or after Stop
var ErrNotStarted = errors.New("notification dispatcher not running")

// Credentials is what a new user needs to log in for the first time
type Credentials struct {
	Email    string
	FullName string
	WorkID   string
	Password identity.Secret
}

// Sender delivers credentials over one channel
type Sender interface {
	Name() string
	SendCredentials(ctx context.Context, c Credentials) error
}

// Failures counts dropped or failed deliveries per channel
type Failures interface {
	NotificationFailure(channel string)
}

// Config holds configuration for the Dispatcher
type Config struct {
	BufferSize  int           // Size of the job channel
	WorkerCount int           // Number of concurrent workers
	SendTimeout time.Duration // Bound on one delivery attempt per sender
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  256,
		WorkerCount: 2,
		SendTimeout: 20 * time.Second,
	}
}

// Dispatcher fans credentials out to every configured sender on background workers
type Dispatcher struct {
	senders     []Sender
	logger      *zap.Logger
	failures    Failures
	jobs        chan Credentials
	workerCount int
	bufferSize  int
	sendTimeout time.Duration
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewDispatcher creates a new Dispatcher. failures may be nil.
func NewDispatcher(logger *zap.Logger, failures Failures, config Config, senders ...Sender) *Dispatcher {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = def.SendTimeout
	}
	return &Dispatcher{
		senders:     senders,
		logger:      logger,
		failures:    failures,
		jobs:        make(chan Credentials, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		sendTimeout: config.SendTimeout,
	}
}

// Start starts the background workers
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("notification dispatcher already started")
	}

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.started = true
	names := make([]string, 0, len(d.senders))
	for _, s := range d.senders {
		names = append(names, s.Name())
	}
	d.logger.Info("started notification dispatcher",
		zap.Int("worker_count", d.workerCount),
		zap.Int("buffer_size", d.bufferSize),
		zap.Strings("channels", names))

	return nil
}

// Stop stops accepting jobs and waits for queued ones to drain
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return fmt.Errorf("notification dispatcher not started")
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.logger.Info("stopping notification dispatcher", zap.Int("pending", len(d.jobs)))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("notification dispatcher stop timeout after %v", timeout)
	}
}

// SendCredentials queues credentials for delivery without blocking. The
// returned error only reports that the job was not queued.
func (d *Dispatcher) SendCredentials(_ context.Context, c Credentials) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		d.countFailure("queue")
		return ErrNotStarted
	}

	select {
	case d.jobs <- c:
		return nil
	default:
		d.countFailure("queue")
		d.logger.Warn("notification queue full, dropping credentials",
			zap.String("email", c.Email))
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("notification worker started", zap.Int("worker_id", id))
	for c := range d.jobs {
		d.deliver(c)
	}
	d.logger.Debug("notification worker stopped", zap.Int("worker_id", id))
}

func (d *Dispatcher) deliver(c Credentials) {
	for _, s := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := s.SendCredentials(ctx, c)
		cancel()
		if err != nil {
			d.countFailure(s.Name())
			d.logger.Error("failed to deliver credentials",
				zap.String("channel", s.Name()),
				zap.String("email", c.Email),
				zap.Error(err))
			continue
		}
		d.logger.Info("credentials delivered",
			zap.String("channel", s.Name()),
			zap.String("email", c.Email))
	}
}

func (d *Dispatcher) countFailure(channel string) {
	if d.failures != nil {
		d.failures.NotificationFailure(channel)
	}
}

// Stats represents dispatcher statistics
type Stats struct {
	BufferSize  int
	Pending     int
	WorkerCount int
	Started     bool
}

// GetStats returns statistics about the dispatcher
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		BufferSize:  d.bufferSize,
		Pending:     len(d.jobs),
		WorkerCount: d.workerCount,
		Started:     d.started && !d.stopped,
	}
}
