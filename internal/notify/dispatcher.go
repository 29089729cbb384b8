package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/philippspitzley/auctioneer/utils"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull   = errors.New("notify: queue is full")
	ErrStopped     = errors.New("notify: dispatcher stopped")
	ErrNoRecipient = errors.New("notify: message has no recipient")
)

// DispatcherConfig sizes the delivery queue and its workers
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	// DedupeSize is how many recent message keys are remembered; 0 disables deduplication.
	DedupeSize int
}

type job struct {
	key string
	msg Message
}

// Dispatcher hands messages to a Mailer from a bounded queue so callers never wait on delivery.
type Dispatcher struct {
	mailer Mailer
	cfg    DispatcherConfig
	queue  chan job
	seen   *lru.Cache

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group
}

func NewDispatcher(mailer Mailer, cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		mailer: mailer,
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
	}
	if cfg.DedupeSize > 0 {
		seen, err := lru.New(cfg.DedupeSize)
		if err != nil {
			return nil, err
		}
		d.seen = seen
	}
	return d, nil
}

// Start launches the workers. They exit once Stop has been called and the queue is drained.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for j := range d.queue {
				d.deliver(gctx, j)
			}
			return nil
		})
	}
	d.group = g

	utils.Info("Mail dispatcher started", map[string]any{
		"workers":    d.cfg.Workers,
		"queue_size": d.cfg.QueueSize,
	})
}

// Enqueue schedules msg for delivery. A key already delivered or queued is dropped silently;
// pass an empty key to skip deduplication.
func (d *Dispatcher) Enqueue(key string, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrStopped
	}

	if key != "" && d.seen != nil {
		if found, _ := d.seen.ContainsOrAdd(key, struct{}{}); found {
			utils.Debug("Duplicate notification suppressed", map[string]any{"key": key, "to": msg.To})
			return nil
		}
	}

	select {
	case d.queue <- job{key: key, msg: msg}:
		return nil
	default:
		if key != "" && d.seen != nil {
			d.seen.Remove(key)
		}
		return ErrQueueFull
	}
}

// Pending reports how many messages wait for a worker
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop closes intake and waits for queued messages to be delivered
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	g := d.group
	d.mu.Unlock()

	if g != nil {
		_ = g.Wait()
	}
	utils.Info("Mail dispatcher stopped", nil)
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	if err := d.mailer.Send(sendCtx, j.msg); err != nil {
		// a failed key may be retried by a later enqueue
		if j.key != "" && d.seen != nil {
			d.seen.Remove(j.key)
		}
		utils.Error("Failed to send email", map[string]any{
			"to":      j.msg.To,
			"subject": j.msg.Subject,
			"error":   err.Error(),
		})
		return
	}
	utils.Info("Email sent", map[string]any{
		"to":       j.msg.To,
		"subject":  j.msg.Subject,
		"duration": time.Since(start).String(),
	})
}
