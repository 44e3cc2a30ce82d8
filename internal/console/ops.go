package console

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/admin"
	"github.com/ajitpratap0/console/pkg/cdc"
	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/keypath"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/models"
	"github.com/ajitpratap0/console/pkg/router"
	"github.com/ajitpratap0/console/pkg/view"
)

// RefreshFunc receives the outcome of a refresh on the loop
type RefreshFunc func(stats cdc.SyncStats, err error)

// Refresh fetches a collection resource in the background and syncs the
// result into the collection on the loop. Failures go to the error
// display. An older response that arrives after a newer one still wins.
func (a *App) Refresh(ctx context.Context, resource string, done RefreshFunc) error {
	path, ok := resourcePaths[resource]
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "unknown resource %q", resource).
			WithDetail("resource", resource)
	}

	ctx = withRequest(ctx)
	go func() {
		var raw interface{}
		err := a.api.FetchJSON(ctx, path, &raw)
		var docs []map[string]interface{}
		if err == nil {
			docs, err = documentsOf(raw, resource)
		}
		a.loop.Post(func() {
			if err != nil {
				a.errors.Show(err)
				if done != nil {
					done(cdc.SyncStats{}, err)
				}
				return
			}
			events, stats, err := cdc.Sync(a.collections[resource], docs, a.cfg.Views.IDKey)
			if err != nil {
				a.errors.Show(err)
			}
			a.log(ctx).Debug("collection refreshed",
				zap.String("resource", resource),
				zap.Int("inserted", stats.Inserted),
				zap.Int("updated", stats.Updated),
				zap.Int("deleted", stats.Deleted),
				zap.Int("skipped", stats.Skipped))
			if len(events) > 0 {
				a.changes.Emit(events)
			}
			if done != nil {
				done(stats, err)
			}
		})
	}()
	return nil
}

// withRequest tags ctx with a fresh request ID unless it already has one
func withRequest(ctx context.Context) context.Context {
	if logger.RequestID(ctx) != "" {
		return ctx
	}
	return logger.WithRequestID(ctx, uuid.NewString())
}

// WatchChanges calls fn on the loop with the change events of every
// refresh that the filter keeps. A nil filter keeps every event. Refreshes
// that change nothing, or whose changes are all filtered out, do not call
// fn. Cancel the subscription to stop.
func (a *App) WatchChanges(ctx context.Context, filter *cdc.EventFilter, fn func([]cdc.ChangeEvent)) (models.Subscription, error) {
	var sub models.Subscription
	err := a.loop.Call(ctx, func() error {
		sub = a.changes.Listen(func(events []cdc.ChangeEvent) {
			if kept := filter.Filter(events); len(kept) > 0 {
				fn(kept)
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loopSubscription{loop: a.loop, sub: sub}, nil
}

// loopSubscription cancels its listener on the loop
type loopSubscription struct {
	loop *Loop
	sub  models.Subscription
}

func (s *loopSubscription) Cancel() {
	if !s.loop.Post(s.sub.Cancel) {
		s.sub.Cancel()
	}
}

// RefreshAll refreshes every collection resource
func (a *App) RefreshAll(ctx context.Context, done RefreshFunc) {
	for _, resource := range a.Resources() {
		_ = a.Refresh(ctx, resource, done)
	}
}

// FetchDocument loads a services, menu, stats or status document into its
// record. An array document is stored under "items".
func (a *App) FetchDocument(ctx context.Context, name string, done func(error)) error {
	path, ok := documentPaths[name]
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "unknown document %q", name).
			WithDetail("document", name)
	}

	ctx = withRequest(ctx)
	go func() {
		var raw interface{}
		err := a.api.FetchJSON(ctx, path, &raw)
		a.loop.Post(func() {
			if err == nil {
				err = a.storeDocument(name, raw)
			}
			if err != nil {
				a.errors.Show(err)
			} else {
				a.log(ctx).Debug("document loaded", zap.String("document", name))
			}
			if done != nil {
				done(err)
			}
		})
	}()
	return nil
}

func (a *App) storeDocument(name string, raw interface{}) error {
	switch doc := raw.(type) {
	case map[string]interface{}:
		a.documents[name].SetAll(doc)
	case []interface{}:
		a.documents[name].Set("items", doc)
	default:
		return errors.Newf(errors.ErrorTypeData, "document %q is not an object or array", name).
			WithDetail("document", name)
	}
	return nil
}

// documentsOf accepts either a bare array of objects or an object holding
// the array under the resource name, "items" or "data"
func documentsOf(raw interface{}, resource string) ([]map[string]interface{}, error) {
	list, ok := raw.([]interface{})
	if !ok {
		if obj, isObj := raw.(map[string]interface{}); isObj {
			for _, key := range []string{resource, "items", "data"} {
				if l, found := obj[key].([]interface{}); found {
					list, ok = l, true
					break
				}
			}
		}
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "%s response is not a list", resource).
			WithDetail("resource", resource)
	}

	docs := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if doc, isDoc := item.(map[string]interface{}); isDoc {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Navigate activates the view for a URL fragment, falling back to the
// default route for unknown fragments
func (a *App) Navigate(ctx context.Context, fragment string) (router.Match, error) {
	var m router.Match
	err := a.loop.Call(ctx, func() error {
		var err error
		m, err = a.router.Navigate(fragment)
		return err
	})
	if err != nil {
		return m, err
	}
	a.log(logger.WithRoute(ctx, m.Route)).Info("route activated", zap.String("path", m.Path))
	return m, nil
}

// SetSearch filters the machines view by name or id. Empty text shows
// every machine.
func (a *App) SetSearch(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	return a.loop.Call(ctx, func() error {
		v := a.views[ViewMachines]
		if text == "" {
			v.SetPredicate(nil)
		} else {
			v.SetPredicate(view.Or(
				view.AttrContains("name", text),
				view.AttrContains("id", text),
			))
		}
		a.state.Set("search", text)
		return nil
	})
}

// Bind subscribes callback to a key path rooted at the state record.
// The callback runs on the loop.
func (a *App) Bind(ctx context.Context, path string, callback keypath.Callback) (*keypath.Binding, error) {
	var b *keypath.Binding
	err := a.loop.Call(ctx, func() error {
		var err error
		b, err = a.adapter.Subscribe(a.state, path, callback)
		return err
	})
	return b, err
}

// Unbind releases a binding
func (a *App) Unbind(ctx context.Context, b *keypath.Binding) error {
	return a.loop.Call(ctx, func() error {
		a.adapter.Unsubscribe(b)
		return nil
	})
}

// Read resolves a key path against the state record. A broken chain reads
// as "".
func (a *App) Read(ctx context.Context, path string) (interface{}, error) {
	var v interface{}
	err := a.loop.Call(ctx, func() error {
		v = a.adapter.Read(a.state, path)
		return nil
	})
	return v, err
}

// Write always fails; bindings are read-only
func (a *App) Write(ctx context.Context, path string, value interface{}) error {
	return a.loop.Call(ctx, func() error {
		return a.adapter.Publish(a.state, path, value)
	})
}

// SubmitFunc receives the outcome of an admin action on the loop
type SubmitFunc func(status *clients.Status, err error)

// SubmitAdmin validates action and posts it in the background. Validation
// errors are returned directly for inline display and nothing is sent.
// Network and API failures go to the error display. A successful action on
// users refreshes the users collection.
func (a *App) SubmitAdmin(ctx context.Context, action admin.Action, done SubmitFunc) error {
	if err := action.Validate(); err != nil {
		return err
	}

	ctx = withRequest(ctx)
	go func() {
		status, err := a.admin.Submit(ctx, action)
		a.loop.Post(func() {
			if err != nil {
				a.errors.Show(err)
			} else if action.Target == ResourceUsers {
				_ = a.Refresh(ctx, ResourceUsers, nil)
			}
			if done != nil {
				done(status, err)
			}
		})
	}()
	return nil
}

// Snapshot copies the attributes of every record in a view, in view order
func (a *App) Snapshot(ctx context.Context, viewName string) ([]map[string]interface{}, error) {
	v, ok := a.views[viewName]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown view %q", viewName).
			WithDetail("view", viewName)
	}
	var out []map[string]interface{}
	err := a.loop.Call(ctx, func() error {
		out = make([]map[string]interface{}, 0, v.Len())
		for _, r := range v.Records() {
			out = append(out, r.Attributes())
		}
		return nil
	})
	return out, err
}
