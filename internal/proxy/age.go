package proxy

import (
	"time"

	"github.com/discochess/nestcache/internal/message"
)

var now = time.Now

// age returns the seconds since resp was stored, never negative.
func age(resp *message.Response) int {
	d := now().Sub(resp.StoredAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
