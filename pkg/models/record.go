// Package models provides the console's state primitives: identified
// records with attribute change notifications and ordered, id-unique
// collections of them.
//
// Records and collections belong to a single goroutine (the console event
// loop). Every mutation notifies listeners synchronously, so a notification
// is fully processed before the next mutation begins.
package models

import (
	"reflect"
	"sort"
)

// Change describes one attribute transition on a record.
type Change struct {
	Record *Record
	Key    string
	Old    interface{}
	New    interface{}
}

// Record is an identified, mutable attribute bag.
type Record struct {
	id       string
	attrs    map[string]interface{}
	watchers map[string]*Emitter[Change]
	changes  Emitter[Change]
}

// NewRecord creates a record with a copy of attrs.
func NewRecord(id string, attrs map[string]interface{}) *Record {
	r := &Record{
		id:       id,
		attrs:    make(map[string]interface{}, len(attrs)),
		watchers: make(map[string]*Emitter[Change]),
	}
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// ID returns the record identifier.
func (r *Record) ID() string {
	return r.id
}

// Get returns the attribute value, or nil when unset.
func (r *Record) Get(key string) interface{} {
	return r.attrs[key]
}

// GetString returns the attribute as a string, or "" if it is not one.
func (r *Record) GetString(key string) string {
	s, _ := r.attrs[key].(string)
	return s
}

// Has reports whether key is set.
func (r *Record) Has(key string) bool {
	_, ok := r.attrs[key]
	return ok
}

// Attributes returns a shallow copy of the attribute bag.
func (r *Record) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Set assigns key and notifies watchers. Equal values are ignored.
func (r *Record) Set(key string, value interface{}) bool {
	old, existed := r.attrs[key]
	if existed && equalValues(old, value) {
		return false
	}
	r.attrs[key] = value
	r.notify(Change{Record: r, Key: key, Old: old, New: value})
	return true
}

// SetAll assigns every entry of attrs and returns the keys that changed.
// Notifications go out in key order after all values are stored, so
// watchers observe the fully updated record.
func (r *Record) SetAll(attrs map[string]interface{}) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		old, existed := r.attrs[k]
		if existed && equalValues(old, attrs[k]) {
			continue
		}
		r.attrs[k] = attrs[k]
		changes = append(changes, Change{Record: r, Key: k, Old: old, New: attrs[k]})
	}

	changed := make([]string, 0, len(changes))
	for _, ch := range changes {
		changed = append(changed, ch.Key)
		r.notify(ch)
	}
	return changed
}

// Unset removes key.
func (r *Record) Unset(key string) bool {
	old, existed := r.attrs[key]
	if !existed {
		return false
	}
	delete(r.attrs, key)
	r.notify(Change{Record: r, Key: key, Old: old, New: nil})
	return true
}

// Watch subscribes fn to changes of a single attribute.
func (r *Record) Watch(key string, fn func(Change)) Subscription {
	em, ok := r.watchers[key]
	if !ok {
		em = &Emitter[Change]{}
		r.watchers[key] = em
	}
	return em.Listen(fn)
}

// OnChange subscribes fn to changes of any attribute.
func (r *Record) OnChange(fn func(Change)) Subscription {
	return r.changes.Listen(fn)
}

// WatcherCount returns the number of live per-key watchers on key.
func (r *Record) WatcherCount(key string) int {
	if em, ok := r.watchers[key]; ok {
		return em.Len()
	}
	return 0
}

func (r *Record) notify(ch Change) {
	if em, ok := r.watchers[ch.Key]; ok {
		em.Emit(ch)
	}
	r.changes.Emit(ch)
}

func equalValues(a, b interface{}) bool {
	switch a.(type) {
	case *Record, List:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
