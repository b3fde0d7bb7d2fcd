// Package safehttp provides an outbound transport that refuses to dial
// private address space. Adapter endpoints are operator-authored URLs, so a
// deployment that accepts configs from untrusted operators can use this to
// keep invocations from reaching internal services.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const dialTimeout = 5 * time.Second

// NewTransport returns a transport whose dialer rejects loopback, private
// and link-local destinations after resolution, so DNS rebinding cannot
// smuggle a request past a hostname check.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: dialTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}
			if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
				conn.Close()
				return nil, fmt.Errorf("adapter endpoint resolves to private IP %s", ip)
			}
			return conn, nil
		},
	}
}
