package clients

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	cfg := DefaultHTTPConfig()
	cfg.BaseURL = srv.URL + "/api"
	cfg.EnableHTTP2 = false
	c, err := NewHTTPClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewHTTPClient_InvalidBaseURL(t *testing.T) {
	cfg := DefaultHTTPConfig()
	cfg.BaseURL = "not a url"
	_, err := NewHTTPClient(cfg, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestResolve(t *testing.T) {
	cfg := DefaultHTTPConfig()
	cfg.BaseURL = "https://console.example.com/api"
	c, err := NewHTTPClient(cfg, nil)
	require.NoError(t, err)

	u, err := c.Resolve("/machines")
	require.NoError(t, err)
	assert.Equal(t, "https://console.example.com/api/machines", u)
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/machines", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"m1","state":"running"}]`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	var docs []map[string]interface{}
	require.NoError(t, c.FetchJSON(context.Background(), "machines", &docs))

	require.Len(t, docs, 1)
	assert.Equal(t, "m1", docs[0]["id"])
	assert.Equal(t, int64(1), c.GetStats().TotalRequests)
}

func TestFetchJSON_RequestID(t *testing.T) {
	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(RequestIDHeader)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	var docs []map[string]interface{}
	ctx := logger.WithRequestID(context.Background(), "req-42")
	require.NoError(t, c.FetchJSON(ctx, "machines", &docs))
	assert.Equal(t, "req-42", <-seen)

	require.NoError(t, c.FetchJSON(context.Background(), "machines", &docs))
	assert.Empty(t, <-seen)
}

func TestFetchJSON_ContentEncodings(t *testing.T) {
	payload := []byte(`{"machines":3}`)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(payload)
	require.NoError(t, gw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zs := enc.EncodeAll(payload, nil)
	require.NoError(t, enc.Close())

	bodies := map[string][]byte{"gzip": gz.Bytes(), "zstd": zs}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), name)
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(body)
			}))
			defer srv.Close()
			c := newTestClient(t, srv)

			var doc map[string]interface{}
			require.NoError(t, c.FetchJSON(context.Background(), "stats", &doc))
			assert.Equal(t, float64(3), doc["machines"])
		})
	}
}

func TestFetchJSON_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/broken":
			http.Error(w, "backend exploded", http.StatusInternalServerError)
		case "/api/private":
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/garbage":
			_, _ = io.WriteString(w, `{"id":`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()
	var doc map[string]interface{}

	err := c.FetchJSON(ctx, "broken", &doc)
	require.True(t, errors.IsType(err, errors.ErrorTypeAPI))
	var apiErr *errors.Error
	require.True(t, errors.As(err, &apiErr))
	status, _ := apiErr.Detail("status")
	assert.Equal(t, 500, status)
	body, _ := apiErr.Detail("body")
	assert.Equal(t, "backend exploded", body)

	assert.True(t, errors.IsType(c.FetchJSON(ctx, "private", &doc), errors.ErrorTypeAuthentication))
	assert.True(t, errors.IsType(c.FetchJSON(ctx, "missing", &doc), errors.ErrorTypeNotFound))
	assert.True(t, errors.IsType(c.FetchJSON(ctx, "garbage", &doc), errors.ErrorTypeData))
	assert.Equal(t, int64(3), c.GetStats().FailedRequests)
}

func TestFetchJSON_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	var doc map[string]interface{}
	err := c.FetchJSON(context.Background(), "machines", &doc)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestSubmitJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"op":"activate","ids":["u1"]}`, string(data))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "alice|t0k", Path: "/"})
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	status, err := c.SubmitJSON(context.Background(), "admin", map[string]interface{}{
		"op":  "activate",
		"ids": []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, status.Code)
	assert.Equal(t, true, status.Body["ok"])

	u, _ := url.Parse(srv.URL)
	cookies := c.Jar().Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "alice|t0k", cookies[0].Value)
}

func TestSubmitJSON_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "queued")
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	status, err := c.SubmitJSON(context.Background(), "admin", map[string]string{"op": "verify"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status.Code)
	assert.Nil(t, status.Body)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "machines", endpointLabel("/machines/m1/actions"))
	assert.Equal(t, "stats", endpointLabel("stats?full=1"))
	assert.Equal(t, "root", endpointLabel("/"))
}
