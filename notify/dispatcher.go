package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/models"
	"github.com/vnkhanh/matchday-server/queue"
)

// TaskDeliver is the queue task type carrying a Delivery.
const TaskDeliver = "notification:deliver"

const deliverTimeout = 10 * time.Second

// Pusher pushes a frame to a user's live session.
type Pusher interface {
	PushUser(ctx context.Context, userID uint, event string, data any)
}

const (
	defaultWorkers = 8
	backlogSize    = 1024
)

// Option tunes a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets how many in-process deliveries may run at once.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// Dispatcher persists notifications and pushes them to connected users.
// With a queue client the work is done by queue workers; otherwise by a fixed pool of
// in-process workers fed from a bounded backlog.
type Dispatcher struct {
	db    *gorm.DB
	push  Pusher
	queue queue.Client

	workers int
	backlog chan Delivery
	start   sync.Once
	group   errgroup.Group
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher builds a dispatcher. push and q may be nil.
func NewDispatcher(db *gorm.DB, push Pusher, q queue.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{db: db, push: push, queue: q, workers: defaultWorkers, backlog: make(chan Delivery, backlogSize)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify is fire-and-forget: failures are logged, never returned.
// It never blocks: when the backlog is full the notification is dropped.
func (d *Dispatcher) Notify(ctx context.Context, userID uint, msg Message) {
	del := Render(userID, msg)
	ctx = context.WithoutCancel(ctx)

	if d.queue != nil {
		payload, err := json.Marshal(del)
		if err == nil {
			_, err = d.queue.Enqueue(ctx, queue.Task{Type: TaskDeliver, Payload: payload},
				queue.EnqueueOption{Queue: "notifications", MaxRetry: 5, Timeout: deliverTimeout})
		}
		if err == nil {
			return
		}
		log.Warn().Err(err).Uint("user_id", userID).Str("kind", string(del.Kind)).
			Msg("notify: enqueue failed, delivering in-process")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Uint("user_id", userID).Str("kind", string(del.Kind)).Msg("notify: dispatcher closed, dropped")
		return
	}
	d.start.Do(d.startWorkers)

	d.pending.Add(1)
	select {
	case d.backlog <- del:
	default:
		d.pending.Done()
		log.Error().Uint("user_id", userID).Str("kind", string(del.Kind)).Msg("notify: backlog full, dropped")
	}
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			for del := range d.backlog {
				d.deliverLocal(del)
			}
			return nil
		})
	}
}

func (d *Dispatcher) deliverLocal(del Delivery) {
	defer d.pending.Done()
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if err := d.Deliver(ctx, del); err != nil {
		log.Error().Err(err).Uint("user_id", del.UserID).Str("kind", string(del.Kind)).Msg("notify: delivery failed")
	}
}

// Deliver stores the notification and pushes it to the user's session.
func (d *Dispatcher) Deliver(ctx context.Context, del Delivery) error {
	n := models.Notification{
		UserID:         del.UserID,
		Kind:           string(del.Kind),
		Message:        del.Text,
		Severity:       string(del.Severity),
		RelatedMatchID: del.MatchID,
	}
	if err := d.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("notify: persist notification: %w", err)
	}
	if d.push != nil {
		d.push.PushUser(ctx, n.UserID, "notification", n)
	}
	return nil
}

// Register binds the delivery task handler to a queue server.
func (d *Dispatcher) Register(srv queue.Server) {
	srv.Register(TaskDeliver, func(ctx context.Context, t queue.Task) error {
		var del Delivery
		if err := json.Unmarshal(t.Payload, &del); err != nil {
			return fmt.Errorf("%w: decode delivery: %v", queue.ErrSkipRetry, err)
		}
		return d.Deliver(ctx, del)
	})
}

// Wait blocks until every in-process delivery accepted so far has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close stops accepting notifications, drains the backlog and stops the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.backlog)
	d.mu.Unlock()
	_ = d.group.Wait()
}
