// Package noopcodec stores entries uncompressed.
package noopcodec

import (
	"io"

	"github.com/discochess/nestcache/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = Codec{}

// Codec passes data through unchanged.
type Codec struct{}

// New returns a new no-op codec.
func New() Codec {
	return Codec{}
}

// Reader returns r as a ReadCloser. Closing it never closes r.
func (Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w as a WriteCloser. Closing it never closes w.
func (Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return writer{w}, nil
}

// Extension returns "".
func (Codec) Extension() string {
	return ""
}

type writer struct{ io.Writer }

func (writer) Close() error { return nil }
