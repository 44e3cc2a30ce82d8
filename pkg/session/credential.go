// Package session reads the console's authentication cookie and watches it
// for sign-out or account switches.
package session

import (
	"context"
	"strings"

	"github.com/ajitpratap0/console/pkg/logger"
)

// DefaultCookieName is the cookie carrying "<username>|<token>"
const DefaultCookieName = "console_session"

// Credential is the parsed session cookie
type Credential struct {
	Username string
	Token    string
}

// Anonymous is the credential of a visitor without a valid cookie
var Anonymous = Credential{}

// IsAnonymous reports whether c carries no identity
func (c Credential) IsAnonymous() bool {
	return c == Anonymous
}

// String returns the username, or "anonymous". The token is never printed.
func (c Credential) String() string {
	if c.IsAnonymous() {
		return "anonymous"
	}
	return c.Username
}

// ParseCredential splits a cookie value on its first '|'. Surrounding
// quotes are dropped. A value without a separator or with an empty part
// is anonymous.
func ParseCredential(value string) Credential {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	user, token, ok := strings.Cut(value, "|")
	if !ok || user == "" || token == "" {
		return Anonymous
	}
	return Credential{Username: user, Token: token}
}

// WithUser tags ctx with the username for logger.WithContext
func WithUser(ctx context.Context, c Credential) context.Context {
	return context.WithValue(ctx, logger.UserKey, c.String())
}
