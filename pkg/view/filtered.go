// Package view provides filtered views: read-only ordered subsets of a
// source list kept consistent with source mutations incrementally.
//
// A view holds the records that satisfy its predicate together with a
// mapping from view position to source position. The mapping is strictly
// increasing, so the view order is always a sub-order of the source order,
// and insert positions are found by binary search of the source index.
// Only creation, predicate replacement and source reset scan the whole
// source.
//
// Views are driven exclusively by source notifications; direct mutation
// returns an invalid_operation error. A view is itself a models.List, so
// views can be stacked.
package view

import (
	"slices"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/metrics"
	"github.com/ajitpratap0/console/pkg/models"
)

// Option configures a FilteredView.
type Option func(*FilteredView)

// WithPredicate sets the initial predicate. Nil means pass-all.
func WithPredicate(p Predicate) Option {
	return func(v *FilteredView) {
		v.predicate = p
	}
}

// WithName labels the view in logs and metrics.
func WithName(name string) Option {
	return func(v *FilteredView) {
		v.name = name
	}
}

// WithLogger sets the view logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *FilteredView) {
		v.logger = l
	}
}

// FilteredView is an incrementally maintained filtered subset of a source
// list. It implements models.CollectionObserver and models.List.
type FilteredView struct {
	name      string
	source    models.List
	predicate Predicate
	logger    *zap.Logger

	records []*models.Record
	mapping []int
	ids     map[string]struct{}

	events models.Emitter[models.Event]
	sub    models.Subscription
}

var _ models.CollectionObserver = (*FilteredView)(nil)
var _ models.List = (*FilteredView)(nil)

// New binds a view to source and evaluates it once. No events are emitted
// for the initial contents.
func New(source models.List, opts ...Option) (*FilteredView, error) {
	if source == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "filtered view requires a source")
	}

	v := &FilteredView{
		name:   "view",
		source: source,
		ids:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.predicate == nil {
		v.predicate = PassAll
	}
	if v.logger == nil {
		v.logger = logger.Get()
	}
	v.logger = v.logger.With(zap.String("component", "filtered_view"), zap.String("view", v.name))

	for i := 0; i < source.Len(); i++ {
		r := source.At(i)
		if v.predicate(r) {
			v.records = append(v.records, r)
			v.mapping = append(v.mapping, i)
			v.ids[r.ID()] = struct{}{}
		}
	}
	metrics.PredicateEvaluations.WithLabelValues(v.name, "create").Inc()
	v.reportSize()

	v.sub = models.Observe(source, v)
	return v, nil
}

// Name returns the view label.
func (v *FilteredView) Name() string { return v.name }

// Len returns the number of visible records.
func (v *FilteredView) Len() int { return len(v.records) }

// At returns the visible record at i, or nil.
func (v *FilteredView) At(i int) *models.Record {
	if i < 0 || i >= len(v.records) {
		return nil
	}
	return v.records[i]
}

// Get returns the visible record with id, or nil.
func (v *FilteredView) Get(id string) *models.Record {
	if i := v.IndexOf(id); i >= 0 {
		return v.records[i]
	}
	return nil
}

// IndexOf returns the view position of id, or -1.
func (v *FilteredView) IndexOf(id string) int {
	if _, ok := v.ids[id]; !ok {
		return -1
	}
	for i, r := range v.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// Records returns a copy of the visible records.
func (v *FilteredView) Records() []*models.Record {
	return slices.Clone(v.records)
}

// Mapping returns a copy of the view-to-source index mapping.
func (v *FilteredView) Mapping() []int {
	return slices.Clone(v.mapping)
}

// Listen subscribes fn to view events.
func (v *FilteredView) Listen(fn models.Handler) models.Subscription {
	return v.events.Listen(fn)
}

// Close releases the source subscription. The view keeps its last
// contents but no longer follows the source.
func (v *FilteredView) Close() {
	if v.sub != nil {
		v.sub.Cancel()
		v.sub = nil
	}
}

// Add is rejected: views are derived only.
func (v *FilteredView) Add(...*models.Record) error {
	return v.rejectMutation("add")
}

// Remove is rejected: views are derived only.
func (v *FilteredView) Remove(...string) error {
	return v.rejectMutation("remove")
}

// Reset is rejected: views are derived only.
func (v *FilteredView) Reset([]*models.Record) error {
	return v.rejectMutation("reset")
}

func (v *FilteredView) rejectMutation(op string) error {
	return errors.New(errors.ErrorTypeInvalidOperation, "filtered view contents are derived from its source").
		WithDetail("view", v.name).
		WithDetail("operation", op)
}

// SetPredicate replaces the predicate (nil restores pass-all) and
// re-evaluates the source in order, emitting add/remove only for records
// whose membership changed, then one filter-complete event.
func (v *FilteredView) SetPredicate(p Predicate) {
	if p == nil {
		p = PassAll
	}
	v.predicate = p

	added, removed := v.reevaluate(true)
	metrics.PredicateEvaluations.WithLabelValues(v.name, "predicate").Inc()
	v.reportSize()
	v.logger.Debug("predicate replaced",
		zap.Int("added", added),
		zap.Int("removed", removed),
		zap.Int("visible", len(v.records)))
	v.emit(models.Event{Kind: models.EventFilterComplete})
}

// reevaluate walks the source once. Because the source is scanned in
// ascending order and mapping holds source indexes, every membership
// change lands at its binary-search position.
func (v *FilteredView) reevaluate(notify bool) (added, removed int) {
	for i := 0; i < v.source.Len(); i++ {
		r := v.source.At(i)
		pos, present := slices.BinarySearch(v.mapping, i)
		pass := v.predicate(r)
		switch {
		case pass && !present:
			if _, dup := v.ids[r.ID()]; dup {
				continue
			}
			v.insertAt(pos, r, i)
			added++
			if notify {
				v.emit(models.Event{Kind: models.EventAdd, Record: r, Index: pos})
			}
		case !pass && present:
			v.removeAt(pos)
			removed++
			if notify {
				v.emit(models.Event{Kind: models.EventRemove, Record: r, Index: pos})
			}
		}
	}
	return added, removed
}

// OnAdd follows a source insertion at index.
func (v *FilteredView) OnAdd(r *models.Record, index int) {
	// Source positions at or after index moved one slot right.
	v.shift(index, 1)

	if !v.predicate(r) {
		return
	}
	if _, dup := v.ids[r.ID()]; dup {
		return
	}
	pos, _ := slices.BinarySearch(v.mapping, index)
	v.insertAt(pos, r, index)
	v.reportSize()
	v.emit(models.Event{Kind: models.EventAdd, Record: r, Index: pos})
}

// OnRemove follows a source removal from index.
func (v *FilteredView) OnRemove(r *models.Record, index int) {
	pos, present := slices.BinarySearch(v.mapping, index)
	if present && v.records[pos].ID() == r.ID() {
		v.removeAt(pos)
	} else {
		present = false
	}
	v.shift(index+1, -1)

	if present {
		v.reportSize()
		v.emit(models.Event{Kind: models.EventRemove, Record: r, Index: pos})
	}
}

// OnReset discards the view and re-evaluates the whole source. Consumers
// receive a single reset event rather than per-record adds.
func (v *FilteredView) OnReset() {
	v.records = v.records[:0]
	v.mapping = v.mapping[:0]
	v.ids = make(map[string]struct{}, len(v.ids))

	v.reevaluate(false)
	metrics.PredicateEvaluations.WithLabelValues(v.name, "reset").Inc()
	v.reportSize()
	v.emit(models.Event{Kind: models.EventReset})
}

// OnSort rebuilds the mapping from the reordered source. Membership is
// unchanged; only the order follows the source.
func (v *FilteredView) OnSort() {
	records := make([]*models.Record, 0, len(v.records))
	mapping := make([]int, 0, len(v.mapping))
	for i := 0; i < v.source.Len(); i++ {
		r := v.source.At(i)
		if _, ok := v.ids[r.ID()]; ok {
			records = append(records, r)
			mapping = append(mapping, i)
		}
	}
	v.records = records
	v.mapping = mapping
	v.emit(models.Event{Kind: models.EventSort})
}

// OnChange re-tests a source record whose attribute key changed.
func (v *FilteredView) OnChange(r *models.Record, key string) {
	index := v.source.IndexOf(r.ID())
	if index < 0 {
		return
	}
	pos, present := slices.BinarySearch(v.mapping, index)
	pass := v.predicate(r)

	switch {
	case present && !pass:
		v.removeAt(pos)
		v.reportSize()
		v.emit(models.Event{Kind: models.EventRemove, Record: r, Index: pos})
	case !present && pass:
		if _, dup := v.ids[r.ID()]; dup {
			return
		}
		v.insertAt(pos, r, index)
		v.reportSize()
		v.emit(models.Event{Kind: models.EventAdd, Record: r, Index: pos})
	case present && pass:
		v.emit(models.Event{Kind: models.EventChange, Record: r, Index: pos, Key: key})
	}
}

func (v *FilteredView) insertAt(pos int, r *models.Record, sourceIndex int) {
	v.records = slices.Insert(v.records, pos, r)
	v.mapping = slices.Insert(v.mapping, pos, sourceIndex)
	v.ids[r.ID()] = struct{}{}
}

func (v *FilteredView) removeAt(pos int) {
	delete(v.ids, v.records[pos].ID())
	v.records = slices.Delete(v.records, pos, pos+1)
	v.mapping = slices.Delete(v.mapping, pos, pos+1)
}

// shift adds delta to every mapping entry >= from.
func (v *FilteredView) shift(from, delta int) {
	start, _ := slices.BinarySearch(v.mapping, from)
	for i := start; i < len(v.mapping); i++ {
		v.mapping[i] += delta
	}
}

func (v *FilteredView) emit(ev models.Event) {
	metrics.ViewEvents.WithLabelValues(v.name, ev.Kind.String()).Inc()
	v.events.Emit(ev)
}

func (v *FilteredView) reportSize() {
	metrics.ViewSize.WithLabelValues(v.name).Set(float64(len(v.records)))
}
