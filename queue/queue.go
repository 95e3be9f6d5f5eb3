// Package queue runs background jobs on asynq, backed by Redis.
package queue

import (
	"context"
	"errors"
	"time"
)

// Task is a background job: a stable type name plus an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error is retried per server policy unless it wraps ErrSkipRetry.
// Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// ErrSkipRetry marks a failure that retrying cannot fix, e.g. a malformed payload.
var ErrSkipRetry = errors.New("queue: skip retry")

// EnqueueOption maps onto asynq options. Zero values mean unspecified.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
