package util

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// GetClientIP resolves the originating client address for a request,
// honouring X-Forwarded-For/X-Real-IP only when the immediate peer is
// within a trusted proxy CIDR - otherwise it falls back to RemoteAddr so a
// client cannot spoof its rate-limit bucket by sending its own headers.
func GetClientIP(r *http.Request, trustProxyHeaders bool, trustedCIDRs []*net.IPNet) string {
	remoteIP := remoteAddrIP(r.RemoteAddr)

	if trustProxyHeaders && remoteIP != nil && isIPInTrustedCIDRs(remoteIP, trustedCIDRs) {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			if candidate := strings.TrimSpace(parts[0]); candidate != "" {
				return candidate
			}
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			return strings.TrimSpace(real)
		}
	}

	if remoteIP != nil {
		return remoteIP.String()
	}
	return r.RemoteAddr
}

func remoteAddrIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// GenerateRequestID mints an opaque id for correlating one request's logs
// and its X-Request-Id response header.
func GenerateRequestID() string {
	return uuid.NewString()
}
