package models

import (
	"sort"

	"github.com/ajitpratap0/console/pkg/errors"
)

// Less orders two records.
type Less func(a, b *Record) bool

// CollectionOption configures a collection.
type CollectionOption func(*Collection)

// WithComparator keeps the collection sorted: Add inserts at the
// comparator position and Sort(nil) uses it.
func WithComparator(less Less) CollectionOption {
	return func(c *Collection) {
		c.less = less
	}
}

// Collection is an ordered, id-unique sequence of records. It emits one
// event per structural change and relays member attribute changes.
type Collection struct {
	name    string
	records []*Record
	byID    map[string]*Record
	relays  map[string]Subscription
	less    Less
	events  Emitter[Event]
}

// NewCollection creates an empty collection.
func NewCollection(name string, opts ...CollectionOption) *Collection {
	c := &Collection{
		name:   name,
		byID:   make(map[string]*Record),
		relays: make(map[string]Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// At returns the record at i, or nil when out of range.
func (c *Collection) At(i int) *Record {
	if i < 0 || i >= len(c.records) {
		return nil
	}
	return c.records[i]
}

// Get returns the record with id, or nil.
func (c *Collection) Get(id string) *Record {
	return c.byID[id]
}

// IndexOf returns the position of id, or -1.
func (c *Collection) IndexOf(id string) int {
	if _, ok := c.byID[id]; !ok {
		return -1
	}
	for i, r := range c.records {
		if r.id == id {
			return i
		}
	}
	return -1
}

// Records returns a copy of the ordered contents.
func (c *Collection) Records() []*Record {
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Listen subscribes fn to every collection event.
func (c *Collection) Listen(fn Handler) Subscription {
	return c.events.Listen(fn)
}

// ListenerCount returns the number of live event listeners.
func (c *Collection) ListenerCount() int {
	return c.events.Len()
}

// Add inserts records, appending or placing them at the comparator
// position. Records whose id is already present are skipped. One add
// event is emitted per inserted record, then a single update event.
func (c *Collection) Add(records ...*Record) int {
	added := 0
	for _, r := range records {
		if r == nil || c.byID[r.id] != nil {
			continue
		}
		index := len(c.records)
		if c.less != nil {
			index = sort.Search(len(c.records), func(i int) bool {
				return c.less(r, c.records[i])
			})
		}
		c.insert(index, r)
		added++
		c.events.Emit(Event{Kind: EventAdd, Record: r, Index: index})
	}
	if added > 0 {
		c.events.Emit(Event{Kind: EventUpdate})
	}
	return added
}

// AddAt inserts record at an explicit position.
func (c *Collection) AddAt(index int, r *Record) error {
	if r == nil {
		return errors.New(errors.ErrorTypeValidation, "record is nil")
	}
	if index < 0 || index > len(c.records) {
		return errors.New(errors.ErrorTypeValidation, "index out of range").
			WithDetail("index", index).
			WithDetail("len", len(c.records))
	}
	if c.byID[r.id] != nil {
		return errors.New(errors.ErrorTypeValidation, "duplicate record id").
			WithDetail("id", r.id)
	}
	c.insert(index, r)
	c.events.Emit(Event{Kind: EventAdd, Record: r, Index: index})
	c.events.Emit(Event{Kind: EventUpdate})
	return nil
}

// Remove deletes the records with the given ids and returns them. Unknown
// ids are ignored.
func (c *Collection) Remove(ids ...string) []*Record {
	removed := make([]*Record, 0, len(ids))
	for _, id := range ids {
		index := c.IndexOf(id)
		if index < 0 {
			continue
		}
		r := c.records[index]
		c.records = append(c.records[:index], c.records[index+1:]...)
		delete(c.byID, id)
		c.detach(id)
		removed = append(removed, r)
		c.events.Emit(Event{Kind: EventRemove, Record: r, Index: index})
	}
	if len(removed) > 0 {
		c.events.Emit(Event{Kind: EventUpdate})
	}
	return removed
}

// Reset replaces the contents wholesale and emits a single reset event.
// Later duplicates of an id are dropped.
func (c *Collection) Reset(records []*Record) {
	for id := range c.relays {
		c.detach(id)
	}
	c.records = c.records[:0]
	c.byID = make(map[string]*Record, len(records))
	for _, r := range records {
		if r == nil || c.byID[r.id] != nil {
			continue
		}
		c.records = append(c.records, r)
		c.byID[r.id] = r
		c.attach(r)
	}
	if c.less != nil {
		sort.SliceStable(c.records, func(i, j int) bool {
			return c.less(c.records[i], c.records[j])
		})
	}
	c.events.Emit(Event{Kind: EventReset})
}

// Sort reorders by less, or by the collection comparator when less is nil,
// and emits a sort event. Without any ordering it does nothing.
func (c *Collection) Sort(less Less) {
	if less == nil {
		less = c.less
	}
	if less == nil {
		return
	}
	sort.SliceStable(c.records, func(i, j int) bool {
		return less(c.records[i], c.records[j])
	})
	c.events.Emit(Event{Kind: EventSort})
}

func (c *Collection) insert(index int, r *Record) {
	c.records = append(c.records, nil)
	copy(c.records[index+1:], c.records[index:])
	c.records[index] = r
	c.byID[r.id] = r
	c.attach(r)
}

func (c *Collection) attach(r *Record) {
	c.relays[r.id] = r.OnChange(func(ch Change) {
		c.events.Emit(Event{Kind: EventChange, Record: r, Index: c.IndexOf(r.id), Key: ch.Key})
	})
}

func (c *Collection) detach(id string) {
	if sub, ok := c.relays[id]; ok {
		sub.Cancel()
		delete(c.relays, id)
	}
}

// ByAttr orders records by a string attribute, then by id.
func ByAttr(key string) Less {
	return func(a, b *Record) bool {
		as, bs := a.GetString(key), b.GetString(key)
		if as != bs {
			return as < bs
		}
		return a.id < b.id
	}
}
