// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// parseTrustedProxies parses CIDR strings, skipping blanks. At least one
// range must remain.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, dserr.Wrapf(err, dserr.CodeServerConfigInvalid, "invalid trusted proxy CIDR %q", cidr)
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, dserr.New(dserr.CodeServerConfigInvalid,
			"trusted_proxies must contain at least one valid CIDR range")
	}
	return nets, nil
}

func isTrustedProxy(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// forwardedClientIP returns the client address a proxy reported: the
// leftmost X-Forwarded-For entry, else X-Real-IP. Empty when neither holds
// a valid IP.
func forwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
		slog.Warn("invalid IP in X-Forwarded-For, using connecting IP", "xff_value", first)
		return ""
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return ""
}

// trustedProxyRealIP rewrites r.RemoteAddr from proxy headers, but only when
// the connecting peer is a trusted proxy. Headers from anyone else are
// ignored so clients cannot pick their own rate-limit bucket.
func trustedProxyRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				peer = r.RemoteAddr
			}

			ip := net.ParseIP(peer)
			if ip == nil {
				slog.Warn("could not parse connecting IP, ignoring proxy headers", "remote_addr", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}

			if isTrustedProxy(ip, trusted) {
				if client := forwardedClientIP(r); client != "" {
					r.RemoteAddr = net.JoinHostPort(client, "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
