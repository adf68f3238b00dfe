// Package fetch performs the network side of an intercepted request.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/discochess/nestcache/internal/message"
)

// ErrNetwork is wrapped by every error caused by the network being
// unreachable or failing mid-response.
var ErrNetwork = errors.New("network error")

// DefaultResponseHeaderTimeout is the default timeout for receiving response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// Fetcher issues a request to the network.
//
// Any HTTP status is a successful fetch; only transport failures are errors.
type Fetcher interface {
	Fetch(ctx context.Context, req *message.Request) (*message.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req *message.Request) (*message.Response, error) {
	return f(ctx, req)
}

// HTTPFetcher fetches requests with an http.Client.
type HTTPFetcher struct {
	client *http.Client
}

// Compile-time check that HTTPFetcher implements Fetcher.
var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// NewHTTPFetcher creates a fetcher with connection level timeouts and no
// overall request timeout.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: 0,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   16,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the underlying HTTP client.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch sends req and reads the full response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *message.Request) (*message.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for name, values := range req.Header {
		if hopByHop(name) {
			continue
		}
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrNetwork, req.URL, err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if resp.ContentLength > 0 {
		respBody.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&respBody, resp.Body); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrNetwork, req.URL, err)
	}

	header := resp.Header.Clone()
	for name := range header {
		if hopByHop(name) {
			header.Del(name)
		}
	}

	return &message.Response{
		URL:        req.URL.String(),
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     header,
		Body:       respBody.Bytes(),
	}, nil
}

// statusText extracts the reason phrase from resp.Status ("200 OK" -> "OK").
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func hopByHop(name string) bool {
	return hopByHopHeaders[http.CanonicalHeaderKey(name)]
}
