package models

import "sync"

// EventKind tags the structural notifications emitted by lists.
type EventKind int

const (
	// EventAdd reports a record inserted at Index
	EventAdd EventKind = iota + 1
	// EventRemove reports a record removed from Index
	EventRemove
	// EventReset reports that the whole contents were replaced
	EventReset
	// EventSort reports a reorder without membership change
	EventSort
	// EventChange reports an attribute change on a member record
	EventChange
	// EventUpdate follows a batch of add/remove events
	EventUpdate
	// EventFilterComplete follows a predicate re-evaluation on a filtered view
	EventFilterComplete
)

var eventKindNames = map[EventKind]string{
	EventAdd:            "add",
	EventRemove:         "remove",
	EventReset:          "reset",
	EventSort:           "sort",
	EventChange:         "change",
	EventUpdate:         "update",
	EventFilterComplete: "filter-complete",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Structural reports whether the event kind changes membership or order.
func (k EventKind) Structural() bool {
	switch k {
	case EventAdd, EventRemove, EventReset, EventSort:
		return true
	default:
		return false
	}
}

// Event is a single list notification. Record and Index are set for add,
// remove and change; Key is set for change.
type Event struct {
	Kind   EventKind
	Record *Record
	Index  int
	Key    string
}

// Handler receives list events.
type Handler func(Event)

// Subscription is returned by every registration; Cancel is idempotent.
type Subscription interface {
	Cancel()
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

type listener[T any] struct {
	fn        func(T)
	cancelled bool
}

// Emitter delivers values to listeners in registration order. It is not
// safe for concurrent use; owners serialize access on the event loop.
type Emitter[T any] struct {
	listeners []*listener[T]
}

// Listen registers fn and returns its subscription.
func (e *Emitter[T]) Listen(fn func(T)) Subscription {
	l := &listener[T]{fn: fn}
	e.listeners = append(e.listeners, l)
	return &subscription{cancel: func() { e.remove(l) }}
}

// Emit calls every live listener. Listeners cancelled during delivery are
// skipped; listeners added during delivery wait for the next Emit.
func (e *Emitter[T]) Emit(v T) {
	if len(e.listeners) == 0 {
		return
	}
	snapshot := make([]*listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	for _, l := range snapshot {
		if !l.cancelled {
			l.fn(v)
		}
	}
}

// Len returns the number of live listeners.
func (e *Emitter[T]) Len() int {
	return len(e.listeners)
}

func (e *Emitter[T]) remove(target *listener[T]) {
	target.cancelled = true
	for i, l := range e.listeners {
		if l == target {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// List is the read side shared by collections and filtered views.
type List interface {
	Len() int
	At(i int) *Record
	Get(id string) *Record
	IndexOf(id string) int
	Listen(fn Handler) Subscription
}

// CollectionObserver is implemented by anything that follows a list
// incrementally.
type CollectionObserver interface {
	OnAdd(record *Record, index int)
	OnRemove(record *Record, index int)
	OnReset()
	OnSort()
	OnChange(record *Record, key string)
}

// Observe forwards list events to observer. Update and filter-complete
// notifications carry no per-record information and are not forwarded.
func Observe(list List, observer CollectionObserver) Subscription {
	return list.Listen(func(ev Event) {
		switch ev.Kind {
		case EventAdd:
			observer.OnAdd(ev.Record, ev.Index)
		case EventRemove:
			observer.OnRemove(ev.Record, ev.Index)
		case EventReset:
			observer.OnReset()
		case EventSort:
			observer.OnSort()
		case EventChange:
			observer.OnChange(ev.Record, ev.Key)
		}
	})
}
