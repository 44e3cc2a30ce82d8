// Package testutil provides testing utilities for the console packages
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/console/pkg/models"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// Records builds records whose only attributes are their id and name
func Records(ids ...string) []*models.Record {
	out := make([]*models.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewRecord(id, map[string]interface{}{"id": id, "name": id}))
	}
	return out
}

// IDs returns the ids of a list in order
func IDs(l models.List) []string {
	out := make([]string, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		out = append(out, l.At(i).ID())
	}
	return out
}

// EventRecorder captures the events a list emits
type EventRecorder struct {
	Events []models.Event
	sub    models.Subscription
}

// Record starts recording events of l until the test ends
func Record(t *testing.T, l models.List) *EventRecorder {
	rec := &EventRecorder{}
	rec.sub = l.Listen(func(ev models.Event) {
		rec.Events = append(rec.Events, ev)
	})
	t.Cleanup(rec.sub.Cancel)
	return rec
}

// Kinds returns the recorded event kinds in order
func (r *EventRecorder) Kinds() []models.EventKind {
	out := make([]models.EventKind, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Kind)
	}
	return out
}

// Count returns how many events of kind were recorded
func (r *EventRecorder) Count(kind models.EventKind) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops recorded events
func (r *EventRecorder) Reset() {
	r.Events = nil
}
