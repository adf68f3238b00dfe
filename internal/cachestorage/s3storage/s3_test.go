package s3storage

import (
	"testing"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b := &Bucket{}
			opt := WithPrefix(tt.input)
			if err := opt(b); err != nil {
				t.Fatalf("WithPrefix() error = %v", err)
			}
			if b.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", b.prefix, tt.want)
			}
		})
	}
}

func TestBucket_objectKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "partitions.json", "partitions.json"},
		{"nest/", "partitions.json", "nest/partitions.json"},
		{"nest/", "partitions/tile-cache/0123456789abcdef.entry.zst", "nest/partitions/tile-cache/0123456789abcdef.entry.zst"},
	}

	for _, tt := range tests {
		b := &Bucket{prefix: tt.prefix}
		if got := b.objectKey(tt.key); got != tt.want {
			t.Errorf("objectKey(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}
