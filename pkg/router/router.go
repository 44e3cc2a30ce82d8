// Package router maps URL fragments like "#machines/single/details/m1" to
// view activation handlers.
package router

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
)

// Console routes
const (
	RouteMachinesIcon   = "machines/icon/"
	RouteMachinesList   = "machines/list/"
	RouteMachineDetails = "machines/single/details/:id"
	RouteNetworks       = "networks/"
	RouteIPs            = "ips/"
	RoutePublicKeys     = "public-keys/"
	DefaultRoute        = RouteMachinesIcon
)

// Match is a resolved route
type Match struct {
	// Route is the registered pattern
	Route string

	// Path is the normalized fragment
	Path   string
	Params map[string]string

	// Fallback is set when Path matched nothing and the default route ran
	Fallback bool
}

// Param returns a path parameter, or ""
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Handler activates the view for a match
type Handler func(Match)

type route struct {
	pattern  string
	segments []string
	handler  Handler
}

// Router dispatches fragments to handlers. Routes are tried in
// registration order.
type Router struct {
	routes       []route
	defaultRoute string
	current      Match
	logger       *zap.Logger
}

// New creates an empty router whose default route is DefaultRoute
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		defaultRoute: DefaultRoute,
		logger:       logger.With(zap.String("component", "router")),
	}
}

// Handle registers handler for pattern. Segments starting with ':' capture
// a parameter.
func (r *Router) Handle(pattern string, handler Handler) error {
	if handler == nil {
		return errors.New(errors.ErrorTypeValidation, "route handler is nil").
			WithDetail("route", pattern)
	}
	segments := split(Normalize(pattern))
	if len(segments) == 0 {
		return errors.New(errors.ErrorTypeValidation, "empty route pattern")
	}
	for _, seg := range segments {
		if seg == ":" {
			return errors.New(errors.ErrorTypeValidation, "unnamed route parameter").
				WithDetail("route", pattern)
		}
	}
	for _, existing := range r.routes {
		if existing.pattern == pattern {
			return errors.New(errors.ErrorTypeValidation, "route already registered").
				WithDetail("route", pattern)
		}
	}
	r.routes = append(r.routes, route{pattern: pattern, segments: segments, handler: handler})
	return nil
}

// SetDefault changes the fallback route. It must match a registered route
// when Navigate falls back.
func (r *Router) SetDefault(fragment string) {
	r.defaultRoute = fragment
}

// Routes returns the registered patterns in order
func (r *Router) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.pattern)
	}
	return out
}

// Current returns the last navigated match
func (r *Router) Current() Match {
	return r.current
}

// Match resolves fragment without running the handler
func (r *Router) Match(fragment string) (Match, bool) {
	m, _, ok := r.lookup(fragment)
	return m, ok
}

// Navigate runs the handler for fragment, or for the default route when
// nothing matches. It fails only when the default route is unroutable.
func (r *Router) Navigate(fragment string) (Match, error) {
	m, h, ok := r.lookup(fragment)
	if !ok {
		r.logger.Debug("unknown route, using default",
			zap.String("fragment", fragment),
			zap.String("default", r.defaultRoute))
		m, h, ok = r.lookup(r.defaultRoute)
		if !ok {
			return Match{}, errors.New(errors.ErrorTypeNotFound, "no route matches").
				WithDetail("fragment", fragment).
				WithDetail("default", r.defaultRoute)
		}
		m.Fallback = true
	}
	r.current = m
	r.logger.Debug("navigate", zap.String("route", m.Route), zap.String("path", m.Path))
	h(m)
	return m, nil
}

func (r *Router) lookup(fragment string) (Match, Handler, bool) {
	path := Normalize(fragment)
	segments := split(path)
	if len(segments) == 0 {
		return Match{}, nil, false
	}
	for _, rt := range r.routes {
		if params, ok := matchSegments(rt.segments, segments); ok {
			return Match{Route: rt.pattern, Path: path, Params: params}, rt.handler, true
		}
	}
	return Match{}, nil, false
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			value, err := url.PathUnescape(path[i])
			if err != nil {
				return nil, false
			}
			params[seg[1:]] = value
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

// Normalize strips a leading '#', '!' or '/' and any query, and ensures a
// trailing slash. An empty fragment stays empty.
func Normalize(fragment string) string {
	f := strings.TrimSpace(fragment)
	if i := strings.IndexByte(f, '?'); i >= 0 {
		f = f[:i]
	}
	f = strings.TrimLeft(f, "#!/")
	if f == "" {
		return ""
	}
	if !strings.HasSuffix(f, "/") {
		f += "/"
	}
	return f
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
