package message

import (
	"net/http"
	"testing"
)

func TestNewRequest_RequiresAbsoluteURL(t *testing.T) {
	if _, err := NewRequest(http.MethodGet, "/index.html"); err == nil {
		t.Error("NewRequest() expected error for relative url, got nil")
	}
}

func TestRequest_Key(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/index.html#top", "https://example.com/index.html"},
		{"https://api.maptiler.com/maps/topo-v4/5/10/12.png?key=abc", "https://api.maptiler.com/maps/topo-v4/5/10/12.png?key=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := MustRequest("", tt.raw)
			if got := req.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequest_IsGet(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"", true},
		{http.MethodGet, true},
		{http.MethodPost, false},
		{http.MethodHead, false},
	}

	for _, tt := range tests {
		req := MustRequest(tt.method, "https://example.com/")
		if got := req.IsGet(); got != tt.want {
			t.Errorf("IsGet() for %q = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestResponse_Clone(t *testing.T) {
	orig := &Response{
		URL:    "https://example.com/",
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html"}},
		Body:   []byte("hello"),
	}

	c := orig.Clone()
	c.Body[0] = 'j'
	c.Header.Set("Content-Type", "text/plain")

	if string(orig.Body) != "hello" {
		t.Errorf("original body mutated: %q", orig.Body)
	}
	if got := orig.Header.Get("Content-Type"); got != "text/html" {
		t.Errorf("original header mutated: %q", got)
	}
}

func TestResponse_OK(t *testing.T) {
	for status, want := range map[int]bool{200: true, 204: true, 299: true, 304: false, 404: false, 500: false} {
		r := &Response{Status: status}
		if got := r.OK(); got != want {
			t.Errorf("OK() for %d = %v, want %v", status, got, want)
		}
	}
}
