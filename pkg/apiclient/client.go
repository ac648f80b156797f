// Package apiclient is the authenticated request layer for the business
// API. Every call is routed under the API namespace, carries the current
// bearer token and gets one forced renewal and retry when the provider
// supports it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/aichef/pkg/credential"
	"github.com/aussiebroadwan/aichef/pkg/idx"
	"github.com/aussiebroadwan/aichef/pkg/metricsx"
	"github.com/aussiebroadwan/aichef/pkg/session"
)

const (
	DefaultPrefix  = "/webhook"
	DefaultTimeout = 60 * time.Second

	// maxBody caps how much of a response is buffered.
	maxBody = 10 << 20
)

// Session is the part of the session controller the request layer needs.
type Session interface {
	TokenExpired() bool
	RetriesUnauthorized() bool
	Renew(ctx context.Context, trigger session.Trigger) error
}

type Config struct {
	BaseURL string

	// Prefix is the business namespace. Empty means DefaultPrefix, use "/"
	// for none.
	Prefix string

	Session     Session
	Credentials credential.Reader

	// HTTPClient defaults to a 60 second client with an OpenTelemetry
	// transport.
	HTTPClient *http.Client

	// Limiter optionally paces outgoing requests.
	Limiter *rate.Limiter

	Logger  *slog.Logger
	Metrics *metricsx.Metrics
}

// Request is one business API call. Body is sent as is on every attempt.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is a fully buffered API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client sends requests on behalf of the current session.
type Client struct {
	base    string
	prefix  string
	sess    Session
	creds   credential.Reader
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
	metrics *metricsx.Metrics
}

func New(cfg Config) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cfg.Credentials == nil {
		cfg.Credentials = credential.NewStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		prefix:  "/" + strings.Trim(cfg.Prefix, "/"),
		sess:    cfg.Session,
		creds:   cfg.Credentials,
		http:    cfg.HTTPClient,
		limiter: cfg.Limiter,
		log:     cfg.Logger.With("component", "apiclient"),
		metrics: cfg.Metrics,
	}
}

// URL resolves path against the API. Absolute URLs pass through untouched.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.prefix == "/" {
		return c.base + path
	}
	return c.base + c.prefix + path
}

// Do sends req. A non-2xx answer returns both the response and a
// *StatusError; a failed renewal returns a *RenewalError and no response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	log := c.log

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.Request("rate_limited", time.Since(start).Seconds())
			return nil, fmt.Errorf("apiclient: rate limit: %w", err)
		}
	}

	if c.sess != nil && c.sess.TokenExpired() {
		log.Debug("access token expired, renewing before request")
		if err := c.sess.Renew(ctx, session.TriggerExpired); err != nil {
			c.metrics.Request("renewal_failed", time.Since(start).Seconds())
			return nil, &RenewalError{Err: err}
		}
	}

	target := c.URL(req.Path)
	retried := false

	for {
		token := c.creds.AccessToken()

		resp, err := c.send(ctx, req, target, token)
		if err != nil {
			c.metrics.Request("transport_error", time.Since(start).Seconds())
			return nil, err
		}

		next := decide(attempt{
			status:    resp.Status,
			retried:   retried,
			retriable: c.sess != nil && c.sess.RetriesUnauthorized(),
			sent:      token,
			current:   c.creds.AccessToken(),
		})

		switch next {
		case actionDone:
			return c.finish(resp, start)

		case actionRenewRetry:
			log.Debug("request unauthorized, forcing renewal", "path", req.Path)
			if err := c.sess.Renew(ctx, session.TriggerUnauthorized); err != nil {
				c.metrics.Request("renewal_failed", time.Since(start).Seconds())
				return nil, &RenewalError{Err: err}
			}

		case actionRetry:
			log.Debug("token changed in flight, retrying", "path", req.Path)
		}

		c.metrics.Retry()
		retried = true
	}
}

func (c *Client) send(ctx context.Context, req *Request, target, token string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if hreq.Header.Get("X-Request-ID") == "" {
		hreq.Header.Set("X-Request-ID", idx.New().String())
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response: %w", err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) finish(resp *Response, start time.Time) (*Response, error) {
	elapsed := time.Since(start).Seconds()

	if resp.Status >= 200 && resp.Status < 300 {
		c.metrics.Request("ok", elapsed)
		return resp, nil
	}

	outcome := "status_error"
	if resp.Status == http.StatusUnauthorized {
		outcome = "unauthorized"
	}
	c.metrics.Request(outcome, elapsed)
	return resp, newStatusError(resp)
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Header: jsonHeader()})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostJSON sends in as JSON and decodes the answer into out, which may be
// nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("apiclient: encode request: %w", err)
	}

	h := jsonHeader()
	h.Set("Content-Type", "application/json")

	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Header: h, Body: body})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func jsonHeader() http.Header {
	return http.Header{"Accept": {"application/json"}}
}

func decode(resp *Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
