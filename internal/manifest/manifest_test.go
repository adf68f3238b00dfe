package manifest

import (
	"errors"
	"net/url"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefault(t *testing.T) {
	m := Default()
	want := []string{
		"/",
		"/index.html",
		"/favicon.png",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
	}
	if !slices.Equal(m.Assets, want) {
		t.Errorf("Assets = %v, want %v", m.Assets, want)
	}

	// Callers must not be able to mutate the built-in list.
	m.Assets[0] = "/changed"
	if Default().Assets[0] != "/" {
		t.Error("Default() shares its slice between calls")
	}
}

func TestResolve(t *testing.T) {
	origin, _ := url.Parse("https://nest.example.org")

	reqs, err := Default().Resolve(origin)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{
		"https://nest.example.org/",
		"https://nest.example.org/index.html",
		"https://nest.example.org/favicon.png",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
	}
	if len(reqs) != len(want) {
		t.Fatalf("Resolve() returned %d requests, want %d", len(reqs), len(want))
	}
	for i, req := range reqs {
		if req.Key() != want[i] {
			t.Errorf("request %d = %q, want %q", i, req.Key(), want[i])
		}
		if !req.IsGet() {
			t.Errorf("request %d method = %q, want GET", i, req.Method)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	origin, _ := url.Parse("https://nest.example.org")

	tests := []struct {
		name   string
		assets []string
		origin *url.URL
		want   error
	}{
		{"relative without origin", []string{"/index.html"}, nil, ErrNoOrigin},
		{"duplicate after resolution", []string{"/index.html", "https://nest.example.org/index.html"}, origin, nil},
		{"duplicate ignoring fragment", []string{"/a#x", "/a#y"}, origin, nil},
		{"bad url", []string{"%zz"}, origin, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Version: Version, Assets: tt.assets}
			_, err := m.Resolve(tt.origin)
			if err == nil {
				t.Fatal("Resolve() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_AbsoluteOnlyNeedsNoOrigin(t *testing.T) {
	m := &Manifest{Version: Version, Assets: []string{"https://cdn.example.com/app.js"}}
	reqs, err := m.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(reqs) != 1 || reqs[0].Key() != "https://cdn.example.com/app.js" {
		t.Errorf("Resolve() = %v", reqs)
	}
}

func TestReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	in := &Manifest{Version: Version, Assets: []string{"/", "/app.css"}}
	if err := Write(path, in); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !slices.Equal(out.Assets, in.Assets) {
		t.Errorf("Assets = %v, want %v", out.Assets, in.Assets)
	}
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Read(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Read(missing) error = nil, want error")
	}

	path := filepath.Join(dir, "v9.json")
	if err := Write(path, &Manifest{Version: 9}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Error("Read(v9) error = nil, want error")
	}
}
