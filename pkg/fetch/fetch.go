// Package fetch implements the HTTP client contract used by every network
// touch point in this repository: a spoofed User-Agent, a default 5-second
// timeout, and a typed distinction between an HTTP error status (the server
// is alive) and a transport failure (the server may be down).  Grounded on
// pkg/python/pep503's simple_repo_api.Client.get in the teacher repo.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is the required header spoof from SPEC_FULL.md §6.
const DefaultUserAgent = "Mozilla/5.0 (X11; U; Linux i686; en-US; rv:1.9.2.3) Gecko/20100423 Ubuntu/10.04 (lucid) Firefox/3.6.3" //nolint:lll

// DefaultTimeout is the required default per-request timeout.
const DefaultTimeout = 5 * time.Second

// Client is a thin, contract-enforcing wrapper around *http.Client.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewClient constructs a Client with the default timeout and User-Agent.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  DefaultUserAgent,
	}
}

func (c *Client) fillDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// StatusError is returned when the server responds with an HTTP status
// >= 400: the server is alive, it simply doesn't have what was asked for.
type StatusError struct {
	Status     string
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %s", e.Status) }

// IsHTTPStatus reports whether err is (or wraps) a *StatusError, i.e.
// whether the failure was a live server returning an error status rather
// than a transport-level failure.
func IsHTTPStatus(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// IsTransportFailure reports whether err represents a transport-level
// failure (DNS, TCP, TLS, timeout, cancellation) as opposed to an
// *StatusError.
func IsTransportFailure(err error) bool {
	return err != nil && !IsHTTPStatus(err)
}

// Get fetches requestURL and returns the response body.  A >=400 status
// yields a *StatusError; any other failure (including ctx cancellation) is
// a plain wrapped transport error.
func (c *Client) Get(ctx context.Context, requestURL string) (_ []byte, err error) {
	c.fillDefaults()
	defer func() {
		if err != nil && !IsHTTPStatus(err) {
			err = fmt.Errorf("GET %s: %w", requestURL, err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{Status: resp.Status, StatusCode: resp.StatusCode}
	}
	return body, nil
}
