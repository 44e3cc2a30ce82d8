// Package clients provides the console API client: fetch a JSON document,
// submit a JSON payload. Requests are never retried; callers surface
// failures and let the user retry.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/console/pkg/errors"
	jsonpool "github.com/ajitpratap0/console/pkg/json"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/metrics"
	"github.com/ajitpratap0/console/pkg/observability"
)

// maxErrorBody caps how much of an error response is kept for reports
const maxErrorBody = 2048

// RequestIDHeader carries the request ID found in the request context
const RequestIDHeader = "X-Request-ID"

// HTTPClient talks to the console API
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	jar        http.CookieJar
	base       *url.URL

	totalRequests  int64
	failedRequests int64
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// BaseURL is the API root all request paths resolve against
	BaseURL string `json:"base_url"`

	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DisableCompression  bool          `json:"disable_compression"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	TLSMinVersion      uint16 `json:"tls_min_version"`

	UserAgent string `json:"user_agent"`
}

// DefaultHTTPConfig returns default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		BaseURL:               "http://localhost:8000/",
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        60 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		UserAgent:             "Console-HTTPClient/1.0",
	}
}

// Status is the outcome of a submit. Body holds the decoded JSON object
// when the response carried one.
type Status struct {
	Code int
	Body map[string]interface{}
}

// NewHTTPClient creates a client for the API at config.BaseURL
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) (*HTTPClient, error) {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "invalid API base URL").
			WithDetail("base_url", config.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create cookie jar")
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
		jar:    jar,
		base:   base,
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		// Content-Encoding is negotiated and decoded here, see encoding.go
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for self-hosted consoles
			MinVersion:         config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client, nil
}

// BaseURL returns the API root
func (c *HTTPClient) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Jar returns the cookie jar shared by every request
func (c *HTTPClient) Jar() http.CookieJar {
	return c.jar
}

// Resolve turns an API path into an absolute URL
func (c *HTTPClient) Resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "invalid API path").
			WithDetail("path", path)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// FetchJSON GETs path and decodes the JSON document into out
func (c *HTTPClient) FetchJSON(ctx context.Context, path string, out interface{}) (err error) {
	ctx, span := observability.StartSpan(ctx, "console.fetch", attribute.String("console.path", path))
	defer func() { observability.EndSpan(span, err) }()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode response encoding").
			WithDetail("path", path)
	}
	defer body.Close()

	if err := jsonpool.Decode(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode JSON document").
			WithDetail("path", path)
	}
	return nil
}

// SubmitJSON POSTs payload as JSON to path. The response body is decoded
// when it is a JSON object; any other body is ignored.
func (c *HTTPClient) SubmitJSON(ctx context.Context, path string, payload interface{}) (status *Status, err error) {
	ctx, span := observability.StartSpan(ctx, "console.submit", attribute.String("console.path", path))
	defer func() { observability.EndSpan(span, err) }()

	buf, err := jsonpool.MarshalToBuffer(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode payload").
			WithDetail("path", path)
	}
	defer jsonpool.PutBuffer(buf)

	resp, err := c.do(ctx, http.MethodPost, path, buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	status = &Status{Code: resp.StatusCode}
	body, err := decodedBody(resp)
	if err != nil {
		return status, nil
	}
	defer body.Close()

	var decoded map[string]interface{}
	if err := jsonpool.Decode(body, &decoded); err == nil {
		status.Body = decoded
	}
	return status, nil
}

// do performs a request and maps transport failures and non-2xx statuses
// to structured errors
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to build request").
			WithDetail("url", target)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.config.DisableCompression {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	log := c.logger.With(logger.Fields(ctx)...)

	endpoint := endpointLabel(path)
	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer()

	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(method, endpoint).Observe(timer.Stop().Seconds())

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		metrics.APIRequests.WithLabelValues(method, endpoint, "error").Inc()
		log.Warn("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed").
			WithDetail("method", method).
			WithDetail("url", target)
	}

	metrics.APIRequests.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug("request completed",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, c.apiError(resp, method, target)
	}
	return resp, nil
}

func (c *HTTPClient) apiError(resp *http.Response, method, target string) error {
	var snippet string
	if body, err := decodedBody(resp); err == nil {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		body.Close()
		snippet = strings.TrimSpace(string(data))
	}

	errType := errors.ErrorTypeAPI
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = errors.ErrorTypeAuthentication
	case http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
	}

	return errors.Newf(errType, "%s %s returned %d", method, target, resp.StatusCode).
		WithDetail("status", resp.StatusCode).
		WithDetail("url", target).
		WithDetail("body", snippet)
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)
	stats := HTTPStats{TotalRequests: total, FailedRequests: failed}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.logger.Debug("closing HTTP client")
	c.transport.CloseIdleConnections()
	return nil
}

// endpointLabel keeps metric cardinality bounded: only the first path
// segment is used
func endpointLabel(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
