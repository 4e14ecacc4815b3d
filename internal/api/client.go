package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource provides the current credential to outgoing requests and
// receives refreshed credentials back.
type TokenSource interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// Client wraps every outbound call with credential attachment and the
// transparent refresh-and-retry protocol.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	onAuthExpired func()
	log           *zap.Logger
}

// NewClient creates a gateway client for the given API base URL
func NewClient(baseURL string, tokens TokenSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		log:        log,
	}
}

// SetAuthExpiredHandler registers the hook fired when a refresh attempt
// fails and the session is discarded (redirect-to-login entry point).
func (c *Client) SetAuthExpiredHandler(fn func()) {
	c.onAuthExpired = fn
}

// Get issues a GET request and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, 0)
}

// Post issues a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, 0)
}

// Put issues a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out, 0)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, 0)
}

// Stream issues a request and hands the raw response to the caller, for
// endpoints that may answer with an event stream instead of plain JSON.
// The refresh-and-retry protocol applies before the response is returned;
// the caller owns closing the body.
func (c *Client) Stream(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.stream(ctx, method, path, body, 0)
}

// do runs one request/decode cycle. attempt counts how many times the
// original request has been issued; the refresh protocol only ever
// re-issues once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, attempt int) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug("http response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return &FetchError{Err: fmt.Errorf("failed to decode response: %w", err)}
			}
		}
		return nil
	}

	apiErr := parseError(resp.StatusCode, data)

	if c.isAuthFailure(resp.StatusCode, apiErr) && attempt == 0 && c.hasToken() {
		if rerr := c.refresh(ctx); rerr != nil {
			return c.expireSession(rerr)
		}
		return c.do(ctx, method, path, query, body, out, attempt+1)
	}

	return apiErr
}

func (c *Client) stream(ctx context.Context, method, path string, body any, attempt int) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, nil, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	data, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	apiErr := parseError(resp.StatusCode, data)

	if c.isAuthFailure(resp.StatusCode, apiErr) && attempt == 0 && c.hasToken() {
		if rerr := c.refresh(ctx); rerr != nil {
			return nil, c.expireSession(rerr)
		}
		return c.stream(ctx, method, path, body, attempt+1)
	}

	return nil, apiErr
}

// send builds and issues a single HTTP request with the credential attached
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &FetchError{Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.log.Debug("http request", zap.String("method", method), zap.String("url", u))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("http request failed", zap.String("url", u), zap.Error(err))
		return nil, &FetchError{Err: fmt.Errorf("failed to connect: %w", err)}
	}
	return resp, nil
}

func (c *Client) hasToken() bool {
	return c.tokens != nil && c.tokens.Token() != ""
}

// isAuthFailure classifies a response as an authentication failure: a 401,
// or a 500 whose message is the literal "Unauthenticated." (the backend
// sometimes reports auth failures under the wrong status code).
func (c *Client) isAuthFailure(status int, err error) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	return status == http.StatusInternalServerError && serverMessage(err) == "Unauthenticated."
}

// refresh exchanges the current (possibly stale) credential for a new one
// and persists it. It bypasses do() so a failing refresh can never trigger
// another refresh.
func (c *Client) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.log.Info("refreshing credential")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, data)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("refresh returned no credential")
	}

	if err := c.tokens.SetToken(result.AccessToken); err != nil {
		return fmt.Errorf("failed to store refreshed credential: %w", err)
	}

	c.log.Info("credential refreshed")
	return nil
}

// expireSession discards local session state after a failed refresh and
// propagates the refresh failure to the original caller.
func (c *Client) expireSession(refreshErr error) error {
	c.log.Warn("credential refresh failed, clearing session", zap.Error(refreshErr))
	if c.tokens != nil {
		_ = c.tokens.Clear()
	}
	if c.onAuthExpired != nil {
		c.onAuthExpired()
	}
	return &AuthError{Message: "session expired", Err: refreshErr}
}
