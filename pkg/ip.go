package pkg

import (
	"net"
	"net/http"
	"strings"
)

// ReadUserIP returns the client address of r, preferring the proxy headers.
// The port is stripped when present.
func ReadUserIP(r *http.Request) string {
	addr := r.Header.Get("X-Real-Ip")
	if addr == "" {
		addr = strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0])
	}
	if addr == "" {
		addr = r.RemoteAddr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
