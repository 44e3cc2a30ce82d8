// Package keypath resolves dotted attribute paths ("model.vm.name")
// across nested records and lists, and keeps read-only subscriptions on
// every link of the chain so a callback fires whenever any link changes.
//
// Each non-terminal segment is read off the current object: on a record
// it is an attribute, on a list it selects a member by numeric position or
// by id. On a list the terminal segment "length" yields the member count.
package keypath

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/models"
)

// DefaultPrefixes are the context identifiers stripped from paths.
var DefaultPrefixes = []string{"model", "item"}

// Step is one (object, key) pair of a resolved chain. Object is a
// *models.Record, a models.List, or nil when an earlier link is unset.
type Step struct {
	Object interface{}
	Key    string
}

// Adapter resolves and subscribes key paths.
type Adapter struct {
	prefixes []string
	logger   *zap.Logger
	bindings map[*Binding]struct{}
}

// NewAdapter creates an adapter. With no prefixes, DefaultPrefixes apply.
func NewAdapter(l *zap.Logger, prefixes ...string) *Adapter {
	if l == nil {
		l = logger.Get()
	}
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	return &Adapter{
		prefixes: prefixes,
		logger:   l.With(zap.String("component", "keypath")),
		bindings: make(map[*Binding]struct{}),
	}
}

// Keys strips a leading context identifier and splits path on dots.
func (a *Adapter) Keys(path string) []string {
	for _, p := range a.prefixes {
		if strings.HasPrefix(path, p+".") {
			path = path[len(p)+1:]
			break
		}
	}
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Resolve walks path from root and returns one step per key. Once a link
// is unset every later step carries a nil Object.
func (a *Adapter) Resolve(root interface{}, path string) []Step {
	keys := a.Keys(path)
	steps := make([]Step, 0, len(keys))
	obj := node(root)
	for i, key := range keys {
		steps = append(steps, Step{Object: obj, Key: key})
		if i < len(keys)-1 {
			obj = node(readKey(obj, key))
		}
	}
	return steps
}

// Read returns the terminal value of path, or "" when the chain is broken
// or the terminal attribute is unset.
func (a *Adapter) Read(root interface{}, path string) interface{} {
	steps := a.Resolve(root, path)
	if len(steps) == 0 {
		return ""
	}
	last := steps[len(steps)-1]
	if last.Object == nil {
		return ""
	}
	v := readKey(last.Object, last.Key)
	if v == nil {
		return ""
	}
	return v
}

// Publish is not supported: bindings are read/subscribe only.
func (a *Adapter) Publish(_ interface{}, path string, _ interface{}) error {
	return errors.New(errors.ErrorTypeUnsupported, "key-path bindings are read-only").
		WithDetail("path", path)
}

// Active returns the number of open bindings.
func (a *Adapter) Active() int {
	return len(a.bindings)
}

// readKey reads key off a record or list. Missing values are nil.
func readKey(obj interface{}, key string) interface{} {
	switch o := obj.(type) {
	case *models.Record:
		return o.Get(key)
	case models.List:
		if key == "length" {
			return o.Len()
		}
		if i, err := strconv.Atoi(key); err == nil {
			if r := o.At(i); r != nil {
				return r
			}
			return nil
		}
		if r := o.Get(key); r != nil {
			return r
		}
	}
	return nil
}

// node narrows v to something a chain can continue through.
func node(v interface{}) interface{} {
	switch o := v.(type) {
	case *models.Record:
		if o != nil {
			return o
		}
	case models.List:
		if o != nil {
			return o
		}
	}
	return nil
}
