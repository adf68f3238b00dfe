// Package entry encodes cached responses for object-based storage backends.
//
// An encoded entry is a single JSON metadata line followed by the raw body,
// the whole stream compressed by a codec.
package entry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/discochess/nestcache/internal/codec"
	"github.com/discochess/nestcache/internal/message"
)

// Version is the current entry format version.
const Version = 1

// header is the metadata line of an encoded entry.
type header struct {
	Version    int         `json:"v"`
	Key        string      `json:"key"`
	URL        string      `json:"url"`
	Status     int         `json:"status"`
	StatusText string      `json:"status_text,omitempty"`
	Header     http.Header `json:"header,omitempty"`
	StoredAt   time.Time   `json:"stored_at"`
	BodyLen    int         `json:"body_len"`
}

// Entry is a decoded cache entry.
type Entry struct {
	Key      string
	Response *message.Response
}

// Encode writes key and resp to w, compressed with c.
func Encode(w io.Writer, c codec.Codec, key string, resp *message.Response) error {
	cw, err := c.Writer(w)
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}

	meta, err := json.Marshal(header{
		Version:    Version,
		Key:        key,
		URL:        resp.URL,
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Header:     resp.Header,
		StoredAt:   resp.StoredAt.UTC(),
		BodyLen:    len(resp.Body),
	})
	if err != nil {
		cw.Close()
		return fmt.Errorf("marshaling entry header: %w", err)
	}

	if _, err := cw.Write(append(meta, '\n')); err != nil {
		cw.Close()
		return fmt.Errorf("writing entry header: %w", err)
	}
	if _, err := cw.Write(resp.Body); err != nil {
		cw.Close()
		return fmt.Errorf("writing entry body: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("flushing entry: %w", err)
	}
	return nil
}

// Decode reads an entry written by Encode.
func Decode(r io.Reader, c codec.Codec) (*Entry, error) {
	cr, err := c.Reader(r)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer cr.Close()

	br := bufio.NewReader(cr)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading entry header: %w", err)
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("parsing entry header: %w", err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("unsupported entry version %d", h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("reading entry body: %w", err)
	}
	if len(body) != h.BodyLen {
		return nil, fmt.Errorf("entry body is %d bytes, header says %d", len(body), h.BodyLen)
	}

	if h.Header == nil {
		h.Header = make(http.Header)
	}

	return &Entry{
		Key: h.Key,
		Response: &message.Response{
			URL:        h.URL,
			Status:     h.Status,
			StatusText: h.StatusText,
			Header:     h.Header,
			Body:       body,
			StoredAt:   h.StoredAt,
		},
	}, nil
}
