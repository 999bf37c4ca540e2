// Package shopapi is a client for the storefront REST backend.
//
// Every method maps its outcome onto the fault taxonomy: transport failures
// and unexpected responses become *fault.FetchError, rejected credentials
// become *fault.AuthError and server-side business rejections become
// *fault.BusinessError. Nothing is retried.
package shopapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/wire"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string
	// Timeout bounds every request. Zero means 30s.
	Timeout   time.Duration
	UserAgent string

	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport is the innermost round tripper. Nil means a clone of
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the storefront REST backend.
type Client struct {
	http    *http.Client
	baseURL string
	lg      *zap.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kart-storefront"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	transport := Chain(
		otelhttp.NewTransport(cfg.Transport,
			otelhttp.WithTracerProvider(cfg.TracerProvider),
			otelhttp.WithMeterProvider(cfg.MeterProvider),
		),
		UserAgent(cfg.UserAgent),
		RequestID(),
		LogRequests(cfg.Logger),
	)

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: strings.TrimRight(u.String(), "/"),
		lg:      cfg.Logger,
	}, nil
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	body   func(e *jx.Encoder)
}

// response is a fully read API response.
type response struct {
	status int
	body   []byte
}

func (r *response) decoder() *jx.Decoder {
	return jx.DecodeBytes(r.body)
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do sends req and reads the response. Transport failures and 401/403
// responses are returned as errors; other statuses are left to the caller.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		var e jx.Encoder
		req.body(&e)
		body = bytes.NewReader(e.Bytes())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, &fault.FetchError{Op: req.op, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &fault.FetchError{Op: req.op, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, &fault.FetchError{Op: req.op, Status: httpResp.StatusCode, Err: errors.Wrap(err, "read body")}
	}

	resp := &response{status: httpResp.StatusCode, body: data}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		msg, _ := wire.ErrorMessage(data)
		return nil, &fault.AuthError{Op: req.op, Message: msg}
	}
	return resp, nil
}

// unexpected builds the error for a response the caller cannot interpret.
func unexpected(op string, resp *response) error {
	if msg, ok := wire.ErrorMessage(resp.body); ok {
		return &fault.FetchError{Op: op, Status: resp.status, Err: errors.New(msg)}
	}
	return &fault.FetchError{Op: op, Status: resp.status}
}

// malformed builds the error for a response body that failed to decode.
func malformed(op string, resp *response, err error) error {
	return &fault.FetchError{Op: op, Status: resp.status, Err: errors.Wrap(err, "decode response")}
}
