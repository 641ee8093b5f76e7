package ratelimit

import (
	"net/http"
	"strings"
)

// ClientIP resolves the rate-limit key for r, trying headers in priority
// order before falling back to a fixed loopback address; per spec §4.9 it
// never inspects r.RemoteAddr (the service sits behind a reverse proxy that
// doesn't preserve it reliably).
func ClientIP(r *http.Request) string {
	if v := r.Header.Get("x-vercel-forwarded-for"); v != "" {
		return v
	}
	if v := r.Header.Get("x-real-ip"); v != "" {
		return v
	}
	if v := r.Header.Get("cf-connecting-ip"); v != "" {
		return v
	}
	if v := r.Header.Get("x-forwarded-for"); v != "" {
		parts := strings.Split(v, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		if last != "" {
			return last
		}
	}
	return "127.0.0.1"
}
