// Package httpclient fetches resources from a flow host. It attaches a bearer token when one
// is configured and turns error responses into HTTPError values carrying the status code.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ServerError represents an error response from the server with a result code and error message.
type ServerError struct {
	Result int    `json:"result"` // HTTP status code or result code from server
	Error  string `json:"error"`  // Error message from server
}

// HTTPError represents an error response from the server with HTTP status code and message.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Error message or response body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// Unauthorized reports whether the server rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	Token                 string        // Sent as a bearer token when set
	Timeout               time.Duration // Per request timeout; zero means none
	DisableCertValidation bool          // If true, skips SSL certificate validation
	UserAgent             string
}

// Client makes authenticated requests against a flow host.
type Client struct {
	opts       ClientOptions
	httpClient *http.Client
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ClientOptions) *Client {
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}
	return &Client{opts: opts, httpClient: httpClient}
}

// ResolveURL joins p onto base. An absolute p is returned unchanged.
func ResolveURL(base, p string) (string, error) {
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "invalid server URL")
	}
	u.Path = path.Join(u.Path, strings.TrimPrefix(p, "/"))
	return u.String(), nil
}

// Get fetches rawURL and returns the response body. Transport failures are returned wrapped,
// so callers can still inspect the underlying *url.Error; responses with status 400 or above
// become *HTTPError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

// Post sends body as JSON to rawURL and returns the response body. Errors are reported as
// for Get.
func (c *Client) Post(ctx context.Context, rawURL string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request body")
	}
	return c.do(ctx, http.MethodPost, rawURL, payload)
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 400 {
		var serverErr ServerError
		if err := json.Unmarshal(body, &serverErr); err == nil && serverErr.Error != "" {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				Message:    serverErr.Error,
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				Message:    "flow not found",
			}
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
