package keypath

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/metrics"
	"github.com/ajitpratap0/console/pkg/models"
)

// Callback receives the current value of a bound path after any link in
// its chain changes.
type Callback func(value interface{})

// State is the resolution state of a binding.
type State int

const (
	// StateResolved means every link of the chain is subscribed
	StateResolved State = iota
	// StateUnresolved means an intermediate link is unset; the binding waits
	// for WaitingKey on the last subscribed object to become non-nil
	StateUnresolved
	// StateClosed means the binding was unsubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	default:
		return "closed"
	}
}

// link is the subscription set for one step of the chain. An alias link
// repeats an (object, key) pair already subscribed earlier in the chain
// and holds no subscriptions of its own.
type link struct {
	object interface{}
	key    string
	alias  bool
	subs   []models.Subscription
}

func (l *link) cancel() {
	for _, s := range l.subs {
		s.Cancel()
	}
	l.subs = nil
}

// Binding is a live subscription of a callback to a key path.
type Binding struct {
	adapter    *Adapter
	root       interface{}
	path       string
	keys       []string
	callback   Callback
	links      []*link
	state      State
	waitingKey string
}

// Subscribe resolves path from root and subscribes callback to every link.
// Record links watch their specific key; list links follow structural
// events. When an intermediate value is nil the remaining chain is deferred
// until that attribute becomes non-nil.
func (a *Adapter) Subscribe(root interface{}, path string, callback Callback) (*Binding, error) {
	if node(root) == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "key-path root must be a record or list").
			WithDetail("path", path)
	}
	if callback == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "key-path callback is nil").
			WithDetail("path", path)
	}
	keys := a.Keys(path)
	if len(keys) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "empty key path").
			WithDetail("path", path)
	}

	b := &Binding{
		adapter:  a,
		root:     node(root),
		path:     path,
		keys:     keys,
		callback: callback,
	}
	b.build(0)
	a.bindings[b] = struct{}{}
	metrics.ActiveBindings.Inc()

	a.logger.Debug("binding subscribed",
		zap.String("path", path),
		zap.String("state", b.state.String()),
		zap.Int("links", len(b.links)))
	return b, nil
}

// Unsubscribe cancels every subscription held by b, including a pending
// deferred link. Calling it again is a no-op.
func (a *Adapter) Unsubscribe(b *Binding) {
	if b == nil || b.state == StateClosed {
		return
	}
	b.retire(0)
	b.state = StateClosed
	b.waitingKey = ""
	delete(a.bindings, b)
	metrics.ActiveBindings.Dec()
	a.logger.Debug("binding unsubscribed", zap.String("path", b.path))
}

// Path returns the bound path.
func (b *Binding) Path() string { return b.path }

// State returns the current resolution state.
func (b *Binding) State() State { return b.state }

// WaitingKey returns the unset attribute an unresolved binding waits on.
func (b *Binding) WaitingKey() string { return b.waitingKey }

// Links returns the (object, key) pairs currently subscribed.
func (b *Binding) Links() []Step {
	out := make([]Step, 0, len(b.links))
	for _, l := range b.links {
		if !l.alias {
			out = append(out, Step{Object: l.object, Key: l.key})
		}
	}
	return out
}

// Value reads the bound path now.
func (b *Binding) Value() interface{} {
	return b.adapter.Read(b.root, b.path)
}

// build subscribes the chain from step `from` onward. Links before `from`
// must be current.
func (b *Binding) build(from int) {
	var obj interface{}
	if from == 0 {
		obj = b.root
	} else {
		prev := b.links[from-1]
		obj = node(readKey(prev.object, prev.key))
	}

	last := len(b.keys) - 1
	for i := from; i <= last; i++ {
		if obj == nil {
			b.state = StateUnresolved
			b.waitingKey = b.keys[i-1]
			return
		}
		key := b.keys[i]
		l := &link{object: obj, key: key, alias: b.subscribed(obj, key)}
		b.links = append(b.links, l)

		value := readKey(obj, key)
		if !l.alias {
			step := i
			switch o := obj.(type) {
			case *models.Record:
				l.subs = append(l.subs, o.Watch(key, func(models.Change) { b.onLinkChange(step) }))
			case models.List:
				l.subs = append(l.subs, o.Listen(func(ev models.Event) {
					if ev.Kind.Structural() {
						b.onLinkChange(step)
					}
				}))
			}
			// A list-valued terminal fires on membership changes. Non-terminal
			// lists are followed by the next link instead.
			if list, ok := node(value).(models.List); ok && i == last {
				l.subs = append(l.subs, list.Listen(func(ev models.Event) {
					switch ev.Kind {
					case models.EventAdd, models.EventRemove, models.EventUpdate, models.EventReset:
						b.fire()
					}
				}))
			}
		}
		obj = node(value)
	}
	b.state = StateResolved
	b.waitingKey = ""
}

// subscribed reports whether (obj, key) already has a live link.
func (b *Binding) subscribed(obj interface{}, key string) bool {
	for _, l := range b.links {
		if !l.alias && l.object == obj && l.key == key {
			return true
		}
	}
	return false
}

// retire cancels links from step `from` onward.
func (b *Binding) retire(from int) {
	for _, l := range b.links[from:] {
		l.cancel()
	}
	b.links = b.links[:from]
}

// onLinkChange re-resolves the chain from the changed link and notifies.
func (b *Binding) onLinkChange(step int) {
	if b.state == StateClosed || step >= len(b.links) {
		return
	}
	b.retire(step)
	b.build(step)
	b.fire()
}

func (b *Binding) fire() {
	if b.state == StateClosed {
		return
	}
	metrics.BindingCallbacks.Inc()
	b.callback(b.Value())
}
