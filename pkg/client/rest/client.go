// Package rest implements client.Client against the platform control-plane
// HTTP API. Requests are authenticated with an OAuth2 client-credentials
// token obtained from the platform's token endpoint.
//
// Endpoints, relative to the API base URL:
//
//	PUT    /allocation/{tenant}/service/{service}/configuration  deploy
//	DELETE /allocation/{tenant}/service/{service}/configuration  undeploy
//	POST   /allocation/{tenant}/service/{service}/actions/start  start
//	POST   /allocation/{tenant}/service/{service}/actions/stop   stop
//	GET    /allocation/{tenant}/service/{service}/status         service status
//	GET    /allocation/{tenant}/topic/{topic}/status             topic status
package rest

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/openfroyo/junction/pkg/client"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// DefaultTimeout bounds a single request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Options configures a client.
type Options struct {
	// BaseURL is the control-plane API base URL.
	BaseURL string

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string

	ClientID     string
	ClientSecret string

	// HTTPClient is the base client used for token and API requests.
	HTTPClient *http.Client

	// Timeout bounds a single API request.
	Timeout time.Duration
}

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Client is a client.Client for one tenant.
type Client struct {
	http    *http.Client
	baseURL string
	tenant  string
}

var _ client.Client = (*Client)(nil)

// New creates a client for tenant and acquires its first access token.
// Token failures are reported as client.ErrUnauthorized.
func New(ctx context.Context, opts Options, tenant string) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", client.ErrUnauthorized)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	// The token source outlives ctx: it refreshes on later requests.
	tokenCtx := context.WithoutCancel(ctx)
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}

	credentials := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}
	tokens := credentials.TokenSource(tokenCtx)
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrUnauthorized, err)
	}

	httpClient := oauth2.NewClient(tokenCtx, tokens)
	httpClient.Timeout = timeout

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		tenant:  tenant,
	}, nil
}

// DeployService creates or replaces the configuration of service.
func (c *Client) DeployService(ctx context.Context, service string, cfg *client.ServiceConfiguration) error {
	return c.do(ctx, http.MethodPut, c.servicePath(service, "configuration"), cfg, nil)
}

// StartService starts service.
func (c *Client) StartService(ctx context.Context, service string) error {
	return c.do(ctx, http.MethodPost, c.servicePath(service, "actions", "start"), nil, nil)
}

// StopService stops service.
func (c *Client) StopService(ctx context.Context, service string) error {
	return c.do(ctx, http.MethodPost, c.servicePath(service, "actions", "stop"), nil, nil)
}

// UndeployService removes service.
func (c *Client) UndeployService(ctx context.Context, service string) error {
	return c.do(ctx, http.MethodDelete, c.servicePath(service, "configuration"), nil, nil)
}

// ServiceStatus returns the status of service.
func (c *Client) ServiceStatus(ctx context.Context, service string) (*client.ServiceStatus, error) {
	var status client.ServiceStatus
	if err := c.do(ctx, http.MethodGet, c.servicePath(service, "status"), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TopicStatus returns the allocation status of topic.
func (c *Client) TopicStatus(ctx context.Context, topic string) (*client.TopicStatus, error) {
	var status client.TopicStatus
	path := c.path("allocation", c.tenant, "topic", topic, "status")
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) servicePath(service string, parts ...string) string {
	return c.path(append([]string{"allocation", c.tenant, "service", service}, parts...)...)
}

func (c *Client) path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

// do sends one request. A 404 maps to client.ErrNotFound, 401 and 403 to
// client.ErrUnauthorized.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	logger := telemetry.FromContext(ctx).NewComponentLogger("rest")

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return fmt.Errorf("%w: %w", client.ErrUnauthorized, err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Zerolog().Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("platform request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, client.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, client.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
