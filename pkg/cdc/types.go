// Package cdc turns fetched API documents into change events and replays
// them onto ordered collections, so a refresh updates records in place
// instead of resetting the collection.
package cdc

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/console/pkg/errors"
	jsonpool "github.com/ajitpratap0/console/pkg/json"
)

// OperationType represents the kind of change applied to a collection
type OperationType string

const (
	OperationInsert OperationType = "INSERT"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// Operations lists every operation type
var Operations = []OperationType{OperationInsert, OperationUpdate, OperationDelete}

// ParseOperation accepts an operation name in any case
func ParseOperation(s string) (OperationType, error) {
	op := OperationType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown change operation %q", s).
		WithDetail("operation", s)
}

// ChangeEvent represents a single change to one record of a collection
type ChangeEvent struct {
	ID         string                 `json:"id"`
	Operation  OperationType          `json:"operation"`
	Collection string                 `json:"collection"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	// Changed lists the attributes that differ between Before and After
	Changed   []string  `json:"changed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// String returns a compact description for logs
func (ce ChangeEvent) String() string {
	return fmt.Sprintf("%s %s/%s", ce.Operation, ce.Collection, ce.ID)
}

// JSON encodes the event, mostly for debug dumps
func (ce ChangeEvent) JSON() ([]byte, error) {
	return jsonpool.Marshal(ce)
}

// SyncStats counts what a sync did
type SyncStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	// Skipped counts documents without a usable id and duplicates
	Skipped int `json:"skipped"`
}

// Total returns the number of applied changes
func (s SyncStats) Total() int {
	return s.Inserted + s.Updated + s.Deleted
}

// EventFilter defines filtering criteria for change events
type EventFilter struct {
	Operations []OperationType  `json:"operations,omitempty"`
	Conditions []FilterCondition `json:"conditions,omitempty"`
}

// FilterCondition represents a single filtering condition
type FilterCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // eq, ne, in, like
	Value    interface{} `json:"value"`
}

// AddCondition adds a filter condition
func (f *EventFilter) AddCondition(field, operator string, value interface{}) {
	f.Conditions = append(f.Conditions, FilterCondition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
}

// ParseCondition reads "field=value", "field!=value", "field~value" (like)
// or "field=a,b" (in)
func ParseCondition(expr string) (FilterCondition, error) {
	invalid := func() (FilterCondition, error) {
		return FilterCondition{}, errors.Newf(errors.ErrorTypeValidation, "invalid filter condition %q", expr).
			WithDetail("condition", expr)
	}
	for _, sep := range []struct {
		token    string
		operator string
	}{{"!=", "ne"}, {"~", "like"}, {"=", "eq"}} {
		field, value, ok := strings.Cut(expr, sep.token)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return invalid()
		}
		if sep.operator == "eq" && strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			values := make([]interface{}, 0, len(parts))
			for _, p := range parts {
				values = append(values, strings.TrimSpace(p))
			}
			return FilterCondition{Field: field, Operator: "in", Value: values}, nil
		}
		return FilterCondition{Field: field, Operator: sep.operator, Value: strings.TrimSpace(value)}, nil
	}
	return invalid()
}

// ShouldInclude checks if an event should be included based on the filter.
// A nil filter includes everything.
func (f *EventFilter) ShouldInclude(event ChangeEvent) bool {
	if f == nil {
		return true
	}
	if len(f.Operations) > 0 {
		found := false
		for _, op := range f.Operations {
			if op == event.Operation {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, condition := range f.Conditions {
		if !f.evaluateCondition(condition, event) {
			return false
		}
	}
	return true
}

// Filter returns the events the filter includes, in order
func (f *EventFilter) Filter(events []ChangeEvent) []ChangeEvent {
	if f == nil {
		return events
	}
	out := make([]ChangeEvent, 0, len(events))
	for _, ev := range events {
		if f.ShouldInclude(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (f *EventFilter) evaluateCondition(condition FilterCondition, event ChangeEvent) bool {
	// After wins over Before so deletes are still matched on their last state
	var fieldValue interface{}
	if event.After != nil {
		fieldValue = event.After[condition.Field]
	}
	if fieldValue == nil && event.Before != nil {
		fieldValue = event.Before[condition.Field]
	}

	value := fmt.Sprintf("%v", fieldValue)
	switch condition.Operator {
	case "eq", "=":
		return value == fmt.Sprintf("%v", condition.Value)
	case "ne", "!=":
		return value != fmt.Sprintf("%v", condition.Value)
	case "in":
		if values, ok := condition.Value.([]interface{}); ok {
			for _, v := range values {
				if value == fmt.Sprintf("%v", v) {
					return true
				}
			}
		}
		return false
	case "like":
		pattern := strings.ToLower(fmt.Sprintf("%v", condition.Value))
		return strings.Contains(strings.ToLower(value), pattern)
	}
	return true
}
