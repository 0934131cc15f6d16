package api

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the rate-limit identity of a request: the first entry of
// X-Forwarded-For when present, otherwise the peer address without port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr без порта
		return r.RemoteAddr
	}
	return host
}
