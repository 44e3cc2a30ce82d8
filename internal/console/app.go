// Package console wires the console state layer together: collections fed
// from the API, filtered views over them, key-path bindings rooted at the
// application state record, fragment routing, admin actions and the
// session watcher.
//
// # Threading
//
// All collection, view and binding work runs on one event loop goroutine.
// API requests run on their own goroutines and post their results back to
// the loop. Requests are never cancelled when a newer one is issued, so a
// slow response that arrives last is applied last even if it is older.
//
// # Usage
//
//	app, err := console.New(console.Dependencies{Config: cfg, API: client, Logger: log})
//	app.Start(ctx)
//	defer app.Stop()
//
//	app.Refresh(ctx, console.ResourceMachines, nil)
//	app.Navigate(ctx, "#machines/list/")
//	app.Bind(ctx, "model.stats.machines", func(v interface{}) { ... })
package console

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/admin"
	"github.com/ajitpratap0/console/pkg/cdc"
	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/config"
	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/keypath"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/models"
	"github.com/ajitpratap0/console/pkg/router"
	"github.com/ajitpratap0/console/pkg/session"
	"github.com/ajitpratap0/console/pkg/view"
)

// Collection resources
const (
	ResourceMachines = "machines"
	ResourceNetworks = "networks"
	ResourceIPs      = "ips"
	ResourceKeys     = "keys"
	ResourceUsers    = "users"
)

// Documents
const (
	DocumentServices = "services"
	DocumentMenu     = "menu"
	DocumentStats    = "stats"
	DocumentStatus   = "status"
)

// Views
const (
	ViewMachines     = "machines"
	ViewRunning      = "running"
	ViewPendingUsers = "pending_users"
	ViewActiveUsers  = "active_users"
	ViewNetworks     = "networks"
	ViewIPs          = "ips"
	ViewKeys         = "keys"
)

// Active view names stored under the "view" state attribute
const (
	PageIcon     = "icon"
	PageList     = "list"
	PageDetails  = "details"
	PageNetworks = "networks"
	PageIPs      = "ips"
	PageKeys     = "keys"
)

// resourcePaths maps collection resources to API paths
var resourcePaths = map[string]string{
	ResourceMachines: "machines",
	ResourceNetworks: "networks",
	ResourceIPs:      "ips",
	ResourceKeys:     "keys",
	ResourceUsers:    "admin/users",
}

// documentPaths maps documents to API paths
var documentPaths = map[string]string{
	DocumentServices: "services",
	DocumentMenu:     "menu",
	DocumentStats:    "stats",
	DocumentStatus:   "status",
}

// API is the subset of clients.HTTPClient the console uses
type API interface {
	FetchJSON(ctx context.Context, path string, out interface{}) error
	SubmitJSON(ctx context.Context, path string, payload interface{}) (*clients.Status, error)
}

// Dependencies are the collaborators of an App
type Dependencies struct {
	Config *config.Config
	API    API
	Logger *zap.Logger
	// Errors defaults to a new ErrorDisplay
	Errors *ErrorDisplay
}

// App is the console state container. It is created once at startup and
// passed to whatever renders it.
type App struct {
	cfg    *config.Config
	api    API
	logger *zap.Logger
	loop   *Loop
	errors *ErrorDisplay

	collections map[string]*models.Collection
	views       map[string]*view.FilteredView
	documents   map[string]*models.Record
	state       *models.Record
	changes     models.Emitter[[]cdc.ChangeEvent]

	adapter *keypath.Adapter
	router  *router.Router
	admin   *admin.Service
}

// New builds the collections, views, routes and state record
func New(deps Dependencies) (*App, error) {
	if deps.API == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "console API client is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	display := deps.Errors
	if display == nil {
		display = NewErrorDisplay(log)
	}

	a := &App{
		cfg:         cfg,
		api:         deps.API,
		logger:      log.With(zap.String("component", "console")),
		loop:        NewLoop(0, log),
		errors:      display,
		collections: make(map[string]*models.Collection),
		views:       make(map[string]*view.FilteredView),
		documents:   make(map[string]*models.Record),
		adapter:     keypath.NewAdapter(log),
		router:      router.New(log),
		admin:       admin.NewService(deps.API, cfg.API.AdminPath, log),
	}

	sortKey := cfg.Views.SortKey
	for name := range resourcePaths {
		var opts []models.CollectionOption
		if sortKey != "" {
			opts = append(opts, models.WithComparator(models.ByAttr(sortKey)))
		}
		a.collections[name] = models.NewCollection(name, opts...)
	}
	for name := range documentPaths {
		a.documents[name] = models.NewRecord(name, nil)
	}

	if err := a.buildViews(); err != nil {
		return nil, err
	}
	if err := a.buildRoutes(); err != nil {
		return nil, err
	}

	a.state = models.NewRecord("console", map[string]interface{}{
		"route":    "",
		"view":     "",
		"search":   "",
		"selected": nil,
		"user":     nil,
	})
	for name, c := range a.collections {
		a.state.Set(name, c)
	}
	for name, d := range a.documents {
		a.state.Set(name, d)
	}
	for name, v := range a.views {
		a.state.Set("view_"+name, v)
	}
	return a, nil
}

func (a *App) buildViews() error {
	specs := []struct {
		name      string
		source    string
		predicate view.Predicate
	}{
		{ViewMachines, ResourceMachines, nil},
		{ViewRunning, ResourceMachines, view.AttrEquals("state", "running")},
		{ViewPendingUsers, ResourceUsers, view.AttrEquals("status", "pending")},
		{ViewActiveUsers, ResourceUsers, view.AttrEquals("status", "active")},
		{ViewNetworks, ResourceNetworks, nil},
		{ViewIPs, ResourceIPs, nil},
		{ViewKeys, ResourceKeys, nil},
	}
	for _, s := range specs {
		opts := []view.Option{view.WithName(s.name), view.WithLogger(a.logger)}
		if s.predicate != nil {
			opts = append(opts, view.WithPredicate(s.predicate))
		}
		v, err := view.New(a.collections[s.source], opts...)
		if err != nil {
			return err
		}
		a.views[s.name] = v
	}
	return nil
}

func (a *App) buildRoutes() error {
	page := func(name string) router.Handler {
		return func(m router.Match) {
			a.state.SetAll(map[string]interface{}{
				"route":    m.Route,
				"view":     name,
				"selected": nil,
			})
		}
	}
	routes := []struct {
		pattern string
		handler router.Handler
	}{
		{router.RouteMachinesIcon, page(PageIcon)},
		{router.RouteMachinesList, page(PageList)},
		{router.RouteMachineDetails, a.showDetails},
		{router.RouteNetworks, page(PageNetworks)},
		{router.RouteIPs, page(PageIPs)},
		{router.RoutePublicKeys, page(PageKeys)},
	}
	for _, r := range routes {
		if err := a.router.Handle(r.pattern, r.handler); err != nil {
			return err
		}
	}
	if a.cfg.Views.DefaultRoute != "" {
		a.router.SetDefault(a.cfg.Views.DefaultRoute)
	}
	return nil
}

// showDetails selects the machine named by the route. An unknown id leaves
// "selected" nil; bindings on model.selected.* wait until it is set.
func (a *App) showDetails(m router.Match) {
	var selected interface{}
	if r := a.collections[ResourceMachines].Get(m.Param("id")); r != nil {
		selected = r
	}
	a.state.SetAll(map[string]interface{}{
		"route":    m.Route,
		"view":     PageDetails,
		"selected": selected,
	})
}

// Start runs the event loop
func (a *App) Start(ctx context.Context) {
	a.loop.Start(ctx)
}

// Stop stops the event loop. Requests in flight finish but their results
// are dropped.
func (a *App) Stop() {
	a.loop.Stop()
}

// log returns the app logger tagged with the request ID, user and route
// carried by ctx
func (a *App) log(ctx context.Context) *zap.Logger {
	return a.logger.With(logger.Fields(ctx)...)
}

// Loop returns the event loop
func (a *App) Loop() *Loop { return a.loop }

// Errors returns the error display
func (a *App) Errors() *ErrorDisplay { return a.errors }

// Router returns the fragment router
func (a *App) Router() *router.Router { return a.router }

// State returns the root record bindings resolve against. Read it on the
// loop only.
func (a *App) State() *models.Record { return a.state }

// Collection returns a collection by resource name
func (a *App) Collection(name string) *models.Collection { return a.collections[name] }

// View returns a filtered view by name
func (a *App) View(name string) *view.FilteredView { return a.views[name] }

// Document returns a document record by name
func (a *App) Document(name string) *models.Record { return a.documents[name] }

// Resources lists the collection resource names
func (a *App) Resources() []string {
	out := make([]string, 0, len(resourcePaths))
	for name := range resourcePaths {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetUser stores the signed-in user under the "user" state attribute
func (a *App) SetUser(ctx context.Context, c session.Credential) error {
	a.log(session.WithUser(ctx, c)).Info("user set", zap.Bool("anonymous", c.IsAnonymous()))
	return a.loop.Call(ctx, func() error {
		if c.IsAnonymous() {
			a.state.Set("user", nil)
			return nil
		}
		a.state.Set("user", models.NewRecord(c.Username, map[string]interface{}{
			"username": c.Username,
		}))
		return nil
	})
}

// WatchSession starts the cookie watcher. redirect runs on the watcher
// goroutine once the credential disappears or changes.
func (a *App) WatchSession(ctx context.Context, source session.CookieSource, redirect session.Redirector) *session.Watcher {
	w := session.NewWatcher(source, redirect,
		session.WithCookieName(a.cfg.Session.CookieName),
		session.WithInterval(a.cfg.Session.PollInterval),
		session.WithLogger(a.logger))
	w.Start(ctx)
	return w
}
