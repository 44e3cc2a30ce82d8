package session

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/metrics"
)

// DefaultInterval is how often the cookie is polled
const DefaultInterval = 2 * time.Second

// Redirect reasons
const (
	ReasonMissing = "missing"
	ReasonChanged = "changed"
)

// CookieSource looks up the raw value of a cookie
type CookieSource interface {
	Cookie(name string) (string, bool)
}

// Redirector leaves the current page, typically back to the sign-in page
type Redirector interface {
	Redirect(reason string)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(reason string)

// Redirect calls f(reason)
func (f RedirectFunc) Redirect(reason string) { f(reason) }

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithCookieName overrides DefaultCookieName
func WithCookieName(name string) WatcherOption {
	return func(w *Watcher) { w.name = name }
}

// WithInterval overrides DefaultInterval
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the watcher logger
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher polls the session cookie at a fixed interval. The credential seen
// when Run starts is the baseline; the first poll that finds it missing or
// different triggers one redirect and ends the watch. There is no stop
// method, the watch ends only with its context.
type Watcher struct {
	source   CookieSource
	redirect Redirector
	name     string
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher over source
func NewWatcher(source CookieSource, redirect Redirector, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		redirect: redirect,
		name:     DefaultCookieName,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "session_watcher"), zap.String("cookie", w.name))
	return w
}

// Current reads and parses the cookie
func (w *Watcher) Current() Credential {
	raw, ok := w.source.Cookie(w.name)
	if !ok {
		return Anonymous
	}
	return ParseCredential(raw)
}

// Check compares the cookie against baseline and returns the redirect
// reason, or "" when nothing changed. Signing in from an anonymous
// baseline counts as a change.
func (w *Watcher) Check(baseline Credential) string {
	current := w.Current()
	switch {
	case current == baseline:
		metrics.SessionChecks.WithLabelValues("unchanged").Inc()
		return ""
	case current.IsAnonymous():
		metrics.SessionChecks.WithLabelValues(ReasonMissing).Inc()
		return ReasonMissing
	default:
		metrics.SessionChecks.WithLabelValues(ReasonChanged).Inc()
		return ReasonChanged
	}
}

// Start reads the baseline credential now and watches it in its own
// goroutine
func (w *Watcher) Start(ctx context.Context) {
	baseline := w.Current()
	go w.watch(ctx, baseline)
}

// Run blocks until the credential changes or ctx is done
func (w *Watcher) Run(ctx context.Context) {
	w.watch(ctx, w.Current())
}

func (w *Watcher) watch(ctx context.Context, baseline Credential) {
	w.logger.Debug("watching session", zap.Stringer("user", baseline))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reason := w.Check(baseline); reason != "" {
				w.logger.Info("session ended, redirecting",
					zap.Stringer("user", baseline),
					zap.String("reason", reason))
				w.redirect.Redirect(reason)
				return
			}
		}
	}
}

// JarSource reads cookies from a cookie jar for one URL
type JarSource struct {
	jar http.CookieJar
	url *url.URL
}

// NewJarSource creates a source over jar scoped to u
func NewJarSource(jar http.CookieJar, u *url.URL) *JarSource {
	return &JarSource{jar: jar, url: u}
}

// Cookie implements CookieSource
func (s *JarSource) Cookie(name string) (string, bool) {
	for _, c := range s.jar.Cookies(s.url) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
