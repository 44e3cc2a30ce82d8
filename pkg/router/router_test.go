package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/console/pkg/errors"
)

func consoleRouter(t *testing.T, visited *[]string) *Router {
	t.Helper()
	r := New(zaptest.NewLogger(t))
	for _, pattern := range []string{
		RouteMachinesIcon, RouteMachinesList, RouteMachineDetails,
		RouteNetworks, RouteIPs, RoutePublicKeys,
	} {
		p := pattern
		require.NoError(t, r.Handle(p, func(m Match) {
			*visited = append(*visited, p+"="+m.Param("id"))
		}))
	}
	return r
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"#machines/icon/":    "machines/icon/",
		"#/machines/list":    "machines/list/",
		"#!networks":         "networks/",
		"/ips/?sort=address": "ips/",
		"  public-keys/ ":    "public-keys/",
		"#":                  "",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNavigate(t *testing.T) {
	var visited []string
	r := consoleRouter(t, &visited)

	m, err := r.Navigate("#machines/single/details/m%2F1")
	require.NoError(t, err)
	assert.Equal(t, RouteMachineDetails, m.Route)
	assert.Equal(t, "m/1", m.Param("id"))
	assert.False(t, m.Fallback)

	_, err = r.Navigate("networks")
	require.NoError(t, err)
	_, err = r.Navigate("#/public-keys/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		RouteMachineDetails + "=m/1",
		RouteNetworks + "=",
		RoutePublicKeys + "=",
	}, visited)
	assert.Equal(t, RoutePublicKeys, r.Current().Route)
}

func TestNavigate_Fallback(t *testing.T) {
	var visited []string
	r := consoleRouter(t, &visited)

	for _, fragment := range []string{"#nowhere/", "", "machines/single/details/", "machines/icon/extra"} {
		m, err := r.Navigate(fragment)
		require.NoError(t, err, fragment)
		assert.True(t, m.Fallback, fragment)
		assert.Equal(t, DefaultRoute, m.Route)
	}
	assert.Len(t, visited, 4)
}

func TestNavigate_NoDefault(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Handle(RouteIPs, func(Match) {}))
	r.SetDefault("missing/")

	_, err := r.Navigate("elsewhere")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestHandle_Validation(t *testing.T) {
	r := New(nil)
	assert.True(t, errors.IsType(r.Handle("ips/", nil), errors.ErrorTypeValidation))
	assert.True(t, errors.IsType(r.Handle("#/", func(Match) {}), errors.ErrorTypeValidation))
	assert.True(t, errors.IsType(r.Handle("machines/:", func(Match) {}), errors.ErrorTypeValidation))

	require.NoError(t, r.Handle("ips/", func(Match) {}))
	assert.True(t, errors.IsType(r.Handle("ips/", func(Match) {}), errors.ErrorTypeValidation))
	assert.Equal(t, []string{"ips/"}, r.Routes())
}

func TestMatch_DoesNotRunHandler(t *testing.T) {
	var visited []string
	r := consoleRouter(t, &visited)

	m, ok := r.Match("machines/list")
	require.True(t, ok)
	assert.Equal(t, RouteMachinesList, m.Route)
	assert.Empty(t, visited)

	_, ok = r.Match("unknown")
	assert.False(t, ok)
}
