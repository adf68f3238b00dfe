// Package message defines the request and response values that flow between
// the interceptor, its cache strategies and the storage backends.
package message

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request is a single intercepted request issued by a page.
// It is transient: it is routed, handled and then discarded.
type Request struct {
	// Method is the HTTP method. An empty method means GET.
	Method string

	// URL is the absolute target URL.
	URL *url.URL

	// Header holds the request headers forwarded to the network.
	Header http.Header

	// Body is the request payload forwarded to the network, if any.
	// It never takes part in the cache identity.
	Body []byte
}

// NewRequest parses rawURL and returns a request for it.
// rawURL must be absolute.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing request url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("request url %q is not absolute", rawURL)
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}, nil
}

// MustRequest is like NewRequest but panics on error.
// Intended for constants and tests.
func MustRequest(method, rawURL string) *Request {
	req, err := NewRequest(method, rawURL)
	if err != nil {
		panic(err)
	}
	return req
}

// IsGet reports whether the request is a GET.
func (r *Request) IsGet() bool {
	return r.Method == "" || r.Method == http.MethodGet
}

// Key returns the cache identity of the request: its absolute URL with the
// fragment removed.
func (r *Request) Key() string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Response is a network or cached response.
type Response struct {
	// URL is the URL the response was produced for.
	URL string

	Status     int
	StatusText string
	Header     http.Header
	Body       []byte

	// StoredAt is when the response was written into a partition.
	// Zero for responses that came straight from the network.
	StoredAt time.Time
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}
	return &c
}
