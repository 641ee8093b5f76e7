package server

import (
	"net/http"
	"time"

	"github.com/provenonce/beats/pkg/ratelimit"
)

// rateLimitResult adds an HTTP-facing convenience (Retry-After seconds) on
// top of ratelimit.Result.
type rateLimitResult ratelimit.Result

// ResetSeconds reports how many seconds remain until this window resets,
// floored at 1 so a just-expired window never yields Retry-After: 0.
func (r rateLimitResult) ResetSeconds() int64 {
	s := int64(time.Until(r.ResetAt).Seconds())
	if s < 1 {
		return 1
	}
	return s
}

// clientIPKey resolves the rate-limit bucket key for r per spec §4.9.
func clientIPKey(r *http.Request) string {
	return ratelimit.ClientIP(r)
}
