package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

func TestHTTPClient_StatusPassthrough(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 10<<10)))
	}))
	defer srv.Close()

	cl := NewHTTPClient(HTTPConfig{UserAgent: "opsmonitor/test", VerifyTLS: true})
	resp, err := cl.Get(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Len(t, resp.Body, maxProbeBody)
	assert.Equal(t, "opsmonitor/test", ua)
}

func TestHTTPClient_NoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(HTTPConfig{}).Get(context.Background(), srv.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = NewHTTPClient(HTTPConfig{FollowRedirects: true}).Get(context.Background(), srv.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_TimeoutClassifiedAsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewProbe(NewHTTPClient(HTTPConfig{}), systemTestClock{})
	res := p.Check(context.Background(), srv.URL, 50*time.Millisecond)

	assert.Equal(t, domain.StatusTimeout, res.Status)
	assert.Equal(t, timeoutMessage, res.Error)
	assert.Nil(t, res.StatusCode)
}

func TestHTTPClient_ConnectionRefusedIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProbe(NewHTTPClient(HTTPConfig{}), systemTestClock{})
	res := p.Check(context.Background(), url, time.Second)

	assert.Equal(t, domain.StatusDown, res.Status)
	assert.NotEmpty(t, res.Error)
}

type systemTestClock struct{}

func (systemTestClock) Now() time.Time { return time.Now() }
