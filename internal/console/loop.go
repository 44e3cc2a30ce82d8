package console

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
)

// Loop runs tasks one at a time on a single goroutine. Collections, views
// and bindings are only touched from tasks, so a notification is always
// fully handled before the next task starts.
type Loop struct {
	tasks   chan func()
	stop    chan struct{}
	stopped chan struct{}
	logger  *zap.Logger

	running   int32
	stopOnce  sync.Once
	processed int64
	panics    int64
}

// NewLoop creates a loop with a task queue of the given size
func NewLoop(queue int, logger *zap.Logger) *Loop {
	if queue <= 0 {
		queue = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		tasks:   make(chan func(), queue),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger.With(zap.String("component", "loop")),
	}
}

// Start runs the loop in its own goroutine
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run processes tasks until ctx is done or Stop is called. Queued tasks
// that have not started are dropped.
func (l *Loop) Run(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		l.logger.Warn("loop already running")
		return
	}
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

// Post queues fn. It returns false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stop:
		return false
	case <-l.stopped:
		return false
	}
}

// Call runs fn on the loop and waits for it. It must not be called from a
// task, that would deadlock.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !l.Post(func() { done <- fn() }) {
		return errors.New(errors.ErrorTypeInvalidOperation, "event loop is stopped")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeConnection, "waiting for event loop")
	case <-l.stopped:
		// the task may have completed right before the loop exited
		select {
		case err := <-done:
			return err
		default:
		}
		return errors.New(errors.ErrorTypeInvalidOperation, "event loop stopped before task ran")
	}
}

// Stop ends Run and waits for the current task to finish. It is safe to
// call more than once and before Run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	if atomic.LoadInt32(&l.running) == 1 {
		<-l.stopped
	}
}

// Processed returns how many tasks have run
func (l *Loop) Processed() int64 {
	return atomic.LoadInt64(&l.processed)
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&l.panics, 1)
			l.logger.Error("task panicked", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
		atomic.AddInt64(&l.processed, 1)
	}()
	task()
}

// Panics returns how many tasks panicked
func (l *Loop) Panics() int64 {
	return atomic.LoadInt64(&l.panics)
}
