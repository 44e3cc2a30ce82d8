package cdc

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/metrics"
	"github.com/ajitpratap0/console/pkg/models"
)

// DefaultIDKey is the document attribute holding the record id
const DefaultIDKey = "id"

// Diff compares docs against the collection and returns the changes that
// bring the collection in line with them. Inserts and updates follow the
// document order; deletes follow the collection order and come last.
// Documents without an id and repeated ids are skipped and counted. Only
// attributes present in a document are compared, so a document that merely
// omits an attribute is not an update.
func Diff(c *models.Collection, docs []map[string]interface{}, idKey string) ([]ChangeEvent, int) {
	if idKey == "" {
		idKey = DefaultIDKey
	}
	now := time.Now()
	seen := make(map[string]bool, len(docs))
	events := make([]ChangeEvent, 0, len(docs))
	skipped := 0

	for _, doc := range docs {
		id, ok := DocumentID(doc, idKey)
		if !ok || seen[id] {
			skipped++
			continue
		}
		seen[id] = true

		existing := c.Get(id)
		if existing == nil {
			events = append(events, ChangeEvent{
				ID:         id,
				Operation:  OperationInsert,
				Collection: c.Name(),
				After:      doc,
				Timestamp:  now,
			})
			continue
		}

		before := existing.Attributes()
		changed := changedKeys(before, doc)
		if len(changed) == 0 {
			continue
		}
		events = append(events, ChangeEvent{
			ID:         id,
			Operation:  OperationUpdate,
			Collection: c.Name(),
			Before:     before,
			After:      doc,
			Changed:    changed,
			Timestamp:  now,
		})
	}

	for _, r := range c.Records() {
		if seen[r.ID()] {
			continue
		}
		events = append(events, ChangeEvent{
			ID:         r.ID(),
			Operation:  OperationDelete,
			Collection: c.Name(),
			Before:     r.Attributes(),
			Timestamp:  now,
		})
	}
	return events, skipped
}

// Apply replays events onto the collection. All deletes are removed in one
// batch, updates are merged into existing records with SetAll, and inserts
// are added in one batch so listeners see a single update event per kind.
// Merging never unsets an attribute: one missing from ev.After keeps its
// previous value.
// An update for a record that is gone becomes an insert and an insert for
// a present record becomes an update.
func Apply(c *models.Collection, events []ChangeEvent) (SyncStats, error) {
	var stats SyncStats
	for _, ev := range events {
		switch ev.Operation {
		case OperationInsert, OperationUpdate, OperationDelete:
		default:
			return stats, errors.Newf(errors.ErrorTypeValidation, "unknown operation %q", ev.Operation).
				WithDetail("id", ev.ID)
		}
		if ev.ID == "" {
			return stats, errors.New(errors.ErrorTypeValidation, "change event without id").
				WithDetail("operation", string(ev.Operation))
		}
	}

	var deletes []string
	var inserts []*models.Record
	pending := make(map[string]bool)
	for _, ev := range events {
		switch ev.Operation {
		case OperationDelete:
			deletes = append(deletes, ev.ID)
		case OperationInsert, OperationUpdate:
			if r := c.Get(ev.ID); r != nil {
				r.SetAll(ev.After)
				stats.Updated++
				continue
			}
			if pending[ev.ID] {
				stats.Skipped++
				continue
			}
			pending[ev.ID] = true
			inserts = append(inserts, models.NewRecord(ev.ID, ev.After))
		}
	}

	if len(deletes) > 0 {
		stats.Deleted = len(c.Remove(deletes...))
	}
	if len(inserts) > 0 {
		stats.Inserted = c.Add(inserts...)
	}

	name := c.Name()
	metrics.SyncChanges.WithLabelValues(name, "insert").Add(float64(stats.Inserted))
	metrics.SyncChanges.WithLabelValues(name, "update").Add(float64(stats.Updated))
	metrics.SyncChanges.WithLabelValues(name, "delete").Add(float64(stats.Deleted))
	return stats, nil
}

// Sync diffs docs against the collection and applies the result
func Sync(c *models.Collection, docs []map[string]interface{}, idKey string) ([]ChangeEvent, SyncStats, error) {
	events, skipped := Diff(c, docs, idKey)
	stats, err := Apply(c, events)
	stats.Skipped += skipped
	if err != nil {
		return nil, stats, err
	}
	return events, stats, nil
}

// DocumentID extracts the id attribute as a string. JSON numbers are
// formatted without a fractional part when they are integral.
func DocumentID(doc map[string]interface{}, idKey string) (string, bool) {
	raw, ok := doc[idKey]
	if !ok || raw == nil {
		return "", false
	}
	var id string
	switch v := raw.(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		id = strconv.Itoa(v)
	case int64:
		id = strconv.FormatInt(v, 10)
	case fmt.Stringer:
		id = v.String()
	default:
		id = fmt.Sprintf("%v", v)
	}
	return id, id != ""
}

// changedKeys lists the keys of next whose values differ from prev, sorted
func changedKeys(prev, next map[string]interface{}) []string {
	var changed []string
	for k, v := range next {
		old, ok := prev[k]
		if !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
