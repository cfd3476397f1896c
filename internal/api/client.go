// Package api implements the Agri-Advisor backend HTTP contract.
//
// Every session-scoped call carries the bearer token from the credentials
// owner. A 401 on any of those calls invalidates the credentials before the
// error is returned, which is what drives the global logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"agriadvisor/internal/domain"
)

const (
	// DefaultBaseURL is the development backend address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// ErrUnauthorized matches any 401 response.
	ErrUnauthorized = domain.ErrUnauthorized

	// ErrNotSignedIn is returned for session-scoped calls without a token.
	ErrNotSignedIn = errors.New("not signed in")
)

// Error is a non-2xx backend response.
type Error struct {
	Method string
	Path   string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// ErrorDetail is the server's explanation, suitable for showing to the user.
func (e *Error) ErrorDetail() string {
	return e.Detail
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenSource supplies the bearer token and is told when it stops working.
type TokenSource interface {
	AccessToken() string
	Invalidate()
}

// Config controls the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	logger *slog.Logger
}

// NewClient builds a client. tokens may be nil for unauthenticated use.
func NewClient(cfg Config, tokens TokenSource) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: httpClient, tokens: tokens, logger: logger}, nil
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	bearer      bool
}

func jsonRequest(method, path string, payload any, bearer bool) (request, error) {
	req := request{method: method, path: path, bearer: bearer}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return req, nil
}

// do performs req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	token := ""
	if req.bearer {
		if c.tokens != nil {
			token = c.tokens.AccessToken()
		}
		if token == "" {
			return ErrNotSignedIn
		}
	}

	endpoint := c.base.String() + req.path
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, req.body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", req.method, req.path, err)
	}
	c.logger.Debug("api call",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"elapsed", time.Since(started),
		"request_id", httpReq.Header.Get("X-Request-ID"),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Method: req.method,
			Path:   req.path,
			Status: resp.StatusCode,
			Detail: parseErrorDetail(body),
		}
		// A token replaced while the request was in flight belongs to a
		// session that is already gone.
		if resp.StatusCode == http.StatusUnauthorized && req.bearer && c.tokens != nil {
			if c.tokens.AccessToken() == token {
				c.logger.Warn("session rejected by backend, signing out", "path", req.path)
				c.tokens.Invalidate()
			} else {
				c.logger.Debug("ignoring 401 for a replaced session", "path", req.path)
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// parseErrorDetail extracts a readable message from a backend error body.
func parseErrorDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return string(trimmed)
	}

	for _, key := range []string{"detail", "error", "message"} {
		if raw, ok := fields[key]; ok {
			if text := flattenMessage(raw); text != "" {
				return text
			}
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if text := flattenMessage(fields[key]); text != "" {
			parts = append(parts, key+": "+text)
		}
	}
	return strings.Join(parts, "; ")
}

func flattenMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, " "))
	}
	return ""
}
