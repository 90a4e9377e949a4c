package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://api.example.com/health", "api"},
		{"https://AUTH.example.com:8443/healthz", "auth"},
		{"http://localhost:8080/health", "localhost"},
		{"http://10.0.0.7/health", "10.0.0.7"},
		{"http://[::1]:9000/", "::1"},
		{"not a url", "not a url"},
		{"://broken", "://broken"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ServiceName(tt.in))
		})
	}
}

func TestKeysSortChronologically(t *testing.T) {
	a := healthKey("api", mustTime("2026-03-01T12:00:00Z"), "")
	b := healthKey("api", mustTime("2026-03-01T12:00:00.5Z"), "")
	c := healthKey("api", mustTime("2026-03-01T12:00:01Z"), "")
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, "incident:api:2026-03-01T12:00:00.000000000Z#1", incidentKey("api", mustTime("2026-03-01T12:00:00Z"), "#1"))
}
