// Package codec provides compression for cache entries written to durable
// storage backends.
package codec

import "io"

// Codec compresses encoded entries on their way to a bucket.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the object name suffix without dot ("zst", "gz"),
	// or "" when entries are stored as is.
	Extension() string
}
