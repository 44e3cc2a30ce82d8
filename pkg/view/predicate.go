package view

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ajitpratap0/console/pkg/models"
)

// Predicate decides whether a record belongs to a view.
type Predicate func(*models.Record) bool

// PassAll admits every record.
func PassAll(*models.Record) bool { return true }

// AttrEquals admits records whose attribute key equals value.
func AttrEquals(key string, value interface{}) Predicate {
	return func(r *models.Record) bool {
		return reflect.DeepEqual(r.Get(key), value)
	}
}

// AttrContains admits records whose attribute key, rendered as text,
// contains substr case-insensitively. An empty substr admits everything.
func AttrContains(key, substr string) Predicate {
	needle := strings.ToLower(substr)
	return func(r *models.Record) bool {
		if needle == "" {
			return true
		}
		v := r.Get(key)
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), needle)
	}
}

// And admits records accepted by every predicate.
func And(preds ...Predicate) Predicate {
	return func(r *models.Record) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Or admits records accepted by any predicate.
func Or(preds ...Predicate) Predicate {
	return func(r *models.Record) bool {
		for _, p := range preds {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(r *models.Record) bool {
		return !p(r)
	}
}
