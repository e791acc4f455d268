package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/looplj/approvalhub/internal/log"
	"github.com/looplj/approvalhub/internal/objects"
)

const defaultUserAgent = "approvalhub/1.0"

// Client executes JSON HTTP requests, optionally through a configured
// proxy. The release check uses it to reach the upstream releases API.
type Client struct {
	client      *http.Client
	proxyConfig *objects.ProxyConfig
}

// NewClient creates a client using the environment proxy settings.
func NewClient() *Client {
	return &Client{client: &http.Client{}}
}

// NewClientWithProxy creates a client honoring the given proxy config.
func NewClientWithProxy(proxyConfig *objects.ProxyConfig) *Client {
	transport := &http.Transport{
		Proxy: proxyFunc(proxyConfig),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		client:      &http.Client{Transport: transport},
		proxyConfig: proxyConfig,
	}
}

// NewClientWithHTTPClient wraps an existing http.Client, e.g. in tests.
func NewClientWithHTTPClient(client *http.Client) *Client {
	return &Client{client: client}
}

func proxyFunc(config *objects.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if config == nil {
		return http.ProxyFromEnvironment
	}

	switch config.Type {
	case objects.ProxyTypeDisabled:
		return func(*http.Request) (*url.URL, error) {
			return nil, nil
		}
	case objects.ProxyTypeEnvironment:
		return http.ProxyFromEnvironment
	case objects.ProxyTypeURL:
		if config.URL == "" {
			return func(*http.Request) (*url.URL, error) {
				return nil, errors.New("proxy URL is required when type is 'url'")
			}
		}

		proxyURL, err := url.Parse(config.URL)
		if err != nil {
			return func(*http.Request) (*url.URL, error) {
				return nil, fmt.Errorf("invalid proxy URL: %w", err)
			}
		}

		if config.Username != "" && config.Password != "" {
			proxyURL.User = url.UserPassword(config.Username, config.Password)
		}

		return http.ProxyURL(proxyURL)
	default:
		return http.ProxyFromEnvironment
	}
}

// Do executes the request and reads the body fully. Responses with
// status >= 400 return a typed *Error.
func (c *Client) Do(ctx context.Context, request *Request) (*Response, error) {
	rawReq, err := c.buildHTTPRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}

	rawResp, err := c.client.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	defer func() {
		if err := rawResp.Body.Close(); err != nil {
			log.Warn(ctx, "failed to close HTTP response body", log.Cause(err))
		}
	}()

	body, err := io.ReadAll(rawResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if log.DebugEnabled(ctx) {
		log.Debug(ctx, "HTTP request finished",
			log.String("method", rawReq.Method),
			log.String("url", rawReq.URL.String()),
			log.Int("status_code", rawResp.StatusCode),
			log.String("body", string(body)))
	}

	if rawResp.StatusCode >= 400 {
		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	return &Response{
		StatusCode: rawResp.StatusCode,
		Status:     rawResp.Status,
		Headers:    rawResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, request *Request) (*http.Request, error) {
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, request.Method, request.URL, body)
	if err != nil {
		return nil, err
	}

	if request.Headers != nil {
		httpReq.Header = request.Headers.Clone()
	}

	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", defaultUserAgent)
	}

	if request.Auth != nil {
		if err := applyAuth(httpReq.Header, request.Auth); err != nil {
			return nil, fmt.Errorf("apply authentication: %w", err)
		}
	}

	if len(request.Query) > 0 {
		if httpReq.URL.RawQuery != "" {
			httpReq.URL.RawQuery += "&"
		}

		httpReq.URL.RawQuery += request.Query.Encode()
	}

	return httpReq, nil
}

func applyAuth(headers http.Header, auth *AuthConfig) error {
	switch auth.Type {
	case "bearer":
		if auth.APIKey == "" {
			return errors.New("bearer token is required")
		}

		headers.Set("Authorization", "Bearer "+auth.APIKey)
	case "api_key":
		if auth.HeaderKey == "" {
			return errors.New("header key is required")
		}

		headers.Set(auth.HeaderKey, auth.APIKey)
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return nil
}
