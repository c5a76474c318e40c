// Package httpclient is the upstream HTTP layer: a response cache for
// idempotent reads, bounded retries for transient failures and credential
// handling that reacts to expired authentication.
package httpclient

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

	"github.com/cenkalti/backoff/v4"

	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

const (
	AnonymousScope = "anonymous"
	PublicScope    = "public"

	DefaultTimeout = 15 * time.Second
)

type scopeKey struct{}

// WithScope tags ctx with the credential scope, typically the session ID
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope of ctx, AnonymousScope when there is none
func ScopeFrom(ctx context.Context) string {
	if scope, ok := ctx.Value(scopeKey{}).(string); ok && scope != "" {
		return scope
	}
	return AnonymousScope
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retry     RetryPolicy
	UserAgent string
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if err := c.Retry.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

type Client struct {
	config     Config
	httpClient *http.Client
	cache      *ResponseCache
	creds      CredentialStore
	now        func() time.Time
	log        *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client. A nil cache or credential store is replaced by
// an in-memory one.
func NewClient(config Config, cache *ResponseCache, creds CredentialStore, opts ...Option) (*Client, error) {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewResponseCache(nil, DefaultResponseTTL, nil)
	}
	if creds == nil {
		creds = NewMemoryCredentials()
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache,
		creds:      creds,
		now:        time.Now,
		log:        logger.Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Cache() *ResponseCache {
	return c.cache
}

func (c *Client) Credentials() CredentialStore {
	return c.creds
}

// Response is a successful upstream answer
type Response struct {
	StatusCode int
	Body       []byte
	FromCache  bool
	StoredAt   time.Time
}

// Decode unmarshals the body into v
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

type requestOptions struct {
	public   bool
	query    url.Values
	validate func(body []byte) error
}

type RequestOption func(*requestOptions)

// Public sends no credential and caches under PublicScope, shared by every
// session. Use it for catalog reads.
func Public() RequestOption {
	return func(o *requestOptions) { o.public = true }
}

func WithQuery(query url.Values) RequestOption {
	return func(o *requestOptions) { o.query = query }
}

// Validate checks a 2xx body fetched from upstream before it is cached. A
// rejected body is not cached and its error is returned by the call.
// Bodies served from the cache already passed it.
func Validate(fn func(body []byte) error) RequestOption {
	return func(o *requestOptions) { o.validate = fn }
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, body, opts...)
}

func isIdempotentRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// Do performs one logical request. Reads are answered from the cache when a
// fresh entry exists and are retried on transient failures; writes are sent
// once and, when successful, invalidate the cached reads of the same resource
// family.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opts ...RequestOption) (*Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	method = strings.ToUpper(method)
	path = normalizePath(path)
	scope := ScopeFrom(ctx)
	if o.public {
		scope = PublicScope
	}
	read := isIdempotentRead(method)
	key := CacheKey(scope, path, o.query)

	fields := map[string]interface{}{
		"method": method,
		"path":   path,
		"scope":  scope,
	}

	if read {
		if env, ok := c.cache.Get(key); ok {
			c.log.Debug("Served from response cache", fields)
			return &Response{
				StatusCode: env.StatusCode,
				Body:       env.Body,
				FromCache:  true,
				StoredAt:   env.StoredAt,
			}, nil
		}
	}

	var token string
	if !o.public {
		t, err := c.creds.Token(ctx, scope)
		if err != nil {
			c.log.Warn("Credential lookup failed, sending unauthenticated", map[string]interface{}{
				"scope": scope,
				"error": err.Error(),
			})
		}
		token = t
		if token != "" && TokenExpired(token, c.now()) {
			c.expireScope(ctx, scope)
			return nil, fmt.Errorf("%s %s: stored token expired: %w", method, path, ErrAuthExpired)
		}
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	target := c.config.BaseURL + path
	if len(o.query) > 0 {
		target += "?" + canonicalQuery(o.query)
	}

	var pending *pendingRead
	if read {
		pending = c.cache.track(Envelope{Scope: scope, Family: FamilyOf(path), Path: path})
		defer c.cache.untrack(pending)
	}

	var resp *Response
	attempt := 0
	operation := func() error {
		attempt++
		r, err := c.send(ctx, method, target, payload, token)
		if err != nil {
			if isTransient(ctx, err) {
				return fmt.Errorf("%w: %v", ErrNetworkTransient, err)
			}
			return backoff.Permanent(err)
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			statusErr := newStatusError(method, path, r.StatusCode, r.Body)
			if statusErr.Temporary() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("Transient upstream failure, retrying", map[string]interface{}{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	policy := c.config.Retry.backOff(ctx)
	if !read {
		// a write that timed out may have been applied upstream
		policy = backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, ErrAuthExpired) && !o.public {
			c.expireScope(ctx, scope)
		}
		if !errors.Is(err, ErrNotFound) {
			c.log.Error("Upstream request failed", err, map[string]interface{}{
				"method":   method,
				"path":     path,
				"scope":    scope,
				"attempts": attempt,
			})
		}
		return nil, err
	}

	if o.validate != nil {
		if err := o.validate(resp.Body); err != nil {
			c.log.Warn("Upstream response rejected, not cached", map[string]interface{}{
				"method": method,
				"path":   path,
				"error":  err.Error(),
			})
			return nil, err
		}
	}

	if read {
		env, stored := c.cache.commit(ctx, pending, Envelope{
			Key:        key,
			Scope:      scope,
			Family:     FamilyOf(path),
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		})
		if stored {
			resp.StoredAt = env.StoredAt
		}
	} else {
		removed := c.cache.InvalidateFamily(ctx, FamilyOf(path))
		c.log.Debug("Write invalidated cached reads", map[string]interface{}{
			"family":  FamilyOf(path),
			"removed": removed,
		})
	}
	return resp, nil
}

// Invalidate drops the cached reads of path in every scope
func (c *Client) Invalidate(ctx context.Context, path string) int {
	return c.cache.InvalidatePath(ctx, path)
}

func (c *Client) expireScope(ctx context.Context, scope string) {
	if err := c.creds.Clear(ctx, scope); err != nil {
		c.log.Error("Failed to clear expired credential", err, map[string]interface{}{"scope": scope})
	}
	removed := c.cache.InvalidateScope(ctx, scope)
	c.log.Warn("Authentication expired, credential cleared", map[string]interface{}{
		"scope":   scope,
		"removed": removed,
	})
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, token string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
