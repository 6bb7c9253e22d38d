package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxGetAttempts = 2
	DefaultRetryInterval  = 300 * time.Millisecond

	maxErrorBody = 64 * 1024
)

// Client executes requests against the remote API. Every attempt passes
// through the before-request hook chain: bearer token, API key,
// Content-Type normalisation, request ID, then any caller hooks.
//
// The client never refreshes tokens or signs the user out; a 401 is returned
// to the caller like any other HTTPError.
type Client struct {
	baseURL        *url.URL
	apiKey         string
	store          securestore.Store
	httpClient     *http.Client
	timeout        time.Duration
	maxGetAttempts int
	retryInterval  time.Duration
	userAgent      string
	extraHooks     []Hook
	before         Hook
	metrics        *metrics
	logger         zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every individual attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets the total attempts for GET requests (capped at 2) and the
// initial backoff interval. Other methods are always sent once.
func WithRetry(maxGetAttempts int, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.maxGetAttempts = maxGetAttempts
		c.retryInterval = initialInterval
	}
}

// WithHook appends a before-request hook that runs after the built-in ones.
func WithHook(h Hook) Option {
	return func(c *Client) {
		c.extraHooks = append(c.extraHooks, h)
	}
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New builds a client bound to baseURL and apiKey. The access token is read
// from store on every attempt.
func New(baseURL, apiKey string, store securestore.Store, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[apiclient New] invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[apiclient New] base url %q must be absolute", baseURL)
	}
	if store == nil {
		return nil, errors.New("[apiclient New] secure store is required")
	}

	c := &Client{
		baseURL:        u,
		apiKey:         apiKey,
		store:          store,
		httpClient:     &http.Client{},
		timeout:        DefaultTimeout,
		maxGetAttempts: DefaultMaxGetAttempts,
		retryInterval:  DefaultRetryInterval,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxGetAttempts < 1 {
		c.maxGetAttempts = 1
	}
	if c.maxGetAttempts > DefaultMaxGetAttempts {
		c.maxGetAttempts = DefaultMaxGetAttempts
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}

	hooks := []Hook{c.bearerTokenHook, c.apiKeyHook, contentTypeHook, requestIDHook}
	hooks = append(hooks, c.extraHooks...)
	c.before = chainHooks(hooks...)
	return c, nil
}

// Request describes one API call. Body is JSON-encoded unless it is []byte
// or an io.Reader; a nil Body sends no body. GET requests never send a body.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Response is a fully read 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// DecodeJSON unmarshals the response body into dst.
func (r *Response) DecodeJSON(dst any) error {
	if len(r.Body) == 0 {
		return &UnknownError{Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return &UnknownError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body})
}

// Do sends req. GET requests are retried on transient failures with
// exponential backoff; every other method is attempted exactly once.
// All failures are *NetworkError, *HTTPError or *UnknownError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	req.Method = method

	payload, err := encodeBody(req)
	if err != nil {
		return nil, &UnknownError{Err: err}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxGetAttempts
	}

	operation := func() (*Response, error) {
		resp, err := c.attempt(ctx, req, payload)
		if err != nil && !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     c.retryInterval,
			RandomizationFactor: 0.2,
			Multiplier:          2,
			MaxInterval:         5 * time.Second,
		}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug().Err(err).Str("method", method).Str("path", req.Path).Dur("backoff", next).Msg("apiclient: retrying request")
		}),
	)
	if err != nil {
		return nil, normalise(err)
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil && req.Method != http.MethodGet {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(actx, req.Method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, &UnknownError{Err: err}
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if err := c.before(actx, httpReq); err != nil {
		return nil, &UnknownError{Err: fmt.Errorf("before-request hook: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(req.Method, 0, time.Since(start))
		return nil, newNetworkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, newNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, newHTTPError(resp.StatusCode, data)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(req Request) ([]byte, error) {
	switch b := req.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return data, nil
	}
}

// normalise guarantees the error union; context errors raised by the retry
// loop itself become NetworkErrors.
func normalise(err error) error {
	var (
		ne *NetworkError
		he *HTTPError
		ue *UnknownError
	)
	switch {
	case errors.As(err, &ne), errors.As(err, &he), errors.As(err, &ue):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newNetworkError(err)
	default:
		return &UnknownError{Err: err}
	}
}
