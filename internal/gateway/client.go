package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"

	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/observability/tracing"
	"github.com/yourorg/stockcast/internal/reliability/circuitbreaker"
	"github.com/yourorg/stockcast/internal/requestid"
)

// Options configures a Client
type Options struct {
	BaseURL string
	// Timeout bounds a whole request. Zero means no client-side timeout.
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport. It is always wrapped with metrics and tracing.
	Transport http.RoundTripper
	// Breaker is optional; when set, requests fail fast with a NetworkError while it is open.
	Breaker          *circuitbreaker.CircuitBreaker
	UploadExtensions []string
	Logger           *slog.Logger
}

// Client is the single point of contact with the backend origin.
// It holds the cookie jar and nothing else session-related.
type Client struct {
	base             string
	baseURL          *url.URL
	http             *http.Client
	jar              http.CookieJar
	breaker          *circuitbreaker.CircuitBreaker
	uploadExtensions []string
	logger           *slog.Logger
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New creates a gateway client bound to one backend origin
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exts := opts.UploadExtensions
	if len(exts) == 0 {
		exts = []string{".csv"}
	}

	transport := otelhttp.NewTransport(metrics.InstrumentTransport(opts.Transport))

	return &Client{
		base:             base,
		baseURL:          u,
		http:             &http.Client{Transport: transport, Jar: jar, Timeout: opts.Timeout},
		jar:              jar,
		breaker:          opts.Breaker,
		uploadExtensions: exts,
		logger:           logger,
	}, nil
}

// BaseURL returns the backend origin
func (c *Client) BaseURL() string {
	return c.base
}

// Cookies returns the session cookies currently held for the backend origin
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved session cookies
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.jar.SetCookies(c.baseURL, restored)
}

// ClearCookies expires every cookie held for the backend origin
func (c *Client) ClearCookies() {
	current := c.jar.Cookies(c.baseURL)
	expired := make([]*http.Cookie, 0, len(current))
	for _, ck := range current {
		expired = append(expired, &http.Cookie{Name: ck.Name, Value: "", Path: "/", MaxAge: -1})
	}
	if len(expired) > 0 {
		c.jar.SetCookies(c.baseURL, expired)
	}
}

// makeRequest builds the URL from path, merges headers over the JSON defaults,
// and turns any non-2xx status into an *HTTPError carrying the body text.
func (c *Client) makeRequest(ctx context.Context, op, method, path string, body io.Reader, header http.Header) (*Response, error) {
	ctx, reqID := requestid.Ensure(ctx)
	ctx, span := tracing.Tracer().Start(ctx, "gateway."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("stockcast.path", path),
		attribute.String("stockcast.request_id", reqID),
	)

	fullURL := c.base + path

	if c.breaker != nil && !c.breaker.Allow() {
		metrics.ObserveOperation(op, "network_error")
		span.SetStatus(codes.Error, circuitbreaker.ErrOpen.Error())
		return nil, &NetworkError{Op: op, Method: method, URL: fullURL, Err: circuitbreaker.ErrOpen}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		metrics.ObserveOperation(op, "invalid")
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set(requestid.Header, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordBreaker(false)
		metrics.ObserveOperation(op, "network_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "network error")
		c.logger.Debug("backend request failed",
			slog.String("operation", op),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		return nil, &NetworkError{Op: op, Method: method, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordBreaker(false)
		metrics.ObserveOperation(op, "network_error")
		span.RecordError(err)
		return nil, &NetworkError{Op: op, Method: method, URL: fullURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.recordBreaker(resp.StatusCode < http.StatusInternalServerError)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.Debug("backend request completed",
		slog.String("operation", op),
		slog.String("request_id", reqID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveOperation(op, "http_error")
		span.SetStatus(codes.Error, resp.Status)
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	metrics.ObserveOperation(op, "ok")
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) recordBreaker(ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}
}

// formField is one scalar multipart field
type formField struct {
	name  string
	value string
}

// formFile is the single file part of an upload
type formFile struct {
	field    string
	filename string
	data     []byte
}

// postForm sends a multipart/form-data POST
func (c *Client) postForm(ctx context.Context, op, path string, fields []formField, file *formFile) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("%s: failed to encode field %s: %w", op, f.name, err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create file part: %w", op, err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, fmt.Errorf("%s: failed to write file part: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: failed to finish form: %w", op, err)
	}

	header := http.Header{}
	header.Set("Content-Type", w.FormDataContentType())
	return c.makeRequest(ctx, op, http.MethodPost, path, &buf, header)
}

// IsNetworkError reports whether err came from the transport rather than the backend
func IsNetworkError(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}
