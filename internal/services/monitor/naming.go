package monitor

import (
	"net"
	"net/url"
	"strings"
)

// ServiceName derives the service a URL belongs to: the first DNS label of its
// host ("api" for https://api.example.com/health). Single-label hosts and IP
// literals are used whole. A URL with no parsable host yields the raw string.
func ServiceName(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	host := u.Hostname()
	if host == "" {
		return raw
	}
	if net.ParseIP(host) != nil {
		return host
	}
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return raw
	}
	return strings.ToLower(label)
}
