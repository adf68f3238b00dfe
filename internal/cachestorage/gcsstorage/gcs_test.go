package gcsstorage

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
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b := &Bucket{}
			WithPrefix(tt.input)(b)
			if b.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", b.prefix, tt.want)
			}
		})
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		input      string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"gs://my-bucket", "my-bucket", "", false},
		{"gs://my-bucket/", "my-bucket", "", false},
		{"gs://my-bucket/nest", "my-bucket", "nest/", false},
		{"gs://my-bucket/nest/cache/", "my-bucket", "nest/cache/", false},
		{"s3://my-bucket", "", "", true},
		{"gs://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("ParseURL() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL() error = %v", err)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.wantPrefix)
			}
		})
	}
}

func TestBucket_objectKey(t *testing.T) {
	b := &Bucket{prefix: "nest/"}
	if got := b.objectKey("partitions.json"); got != "nest/partitions.json" {
		t.Errorf("objectKey() = %q, want %q", got, "nest/partitions.json")
	}
}
