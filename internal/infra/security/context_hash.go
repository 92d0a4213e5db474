package security

import (
	"net"
	"strings"
)

// NormalizeClientIP canonicalizes an IP address for context binding. The
// IPv6 loopback is folded into its IPv4 form so that a session created over
// ::1 still matches a follow-up request observed as 127.0.0.1.
func NormalizeClientIP(ip string) string {
	trimmed := strings.TrimSpace(ip)
	if trimmed == "" {
		return ""
	}

	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return trimmed
	}
	if parsed.IsLoopback() {
		return "127.0.0.1"
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}

// HashClientContext hashes a context attribute (IP or user agent) for
// storage. An empty input yields an empty hash, which downstream comparison
// treats as "not checked".
func HashClientContext(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return HashToken(trimmed)
}

// HashClientIP normalizes and hashes an IP address.
func HashClientIP(ip string) string {
	return HashClientContext(NormalizeClientIP(ip))
}
