package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

var _ domain.HTTPProbe = (*HTTPClient)(nil)

const maxProbeBody = 4 << 10

type HTTPConfig struct {
	UserAgent       string
	FollowRedirects bool
	VerifyTLS       bool
}

// HTTPClient performs probe requests. The timeout is applied per request
// through the context so one client serves every configured timeout.
type HTTPClient struct {
	c   *http.Client
	cfg HTTPConfig
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   domain.MaxProbeTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	client := &http.Client{Transport: otelhttp.NewTransport(transport)}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &HTTPClient{c: client, cfg: cfg}
}

func (cl *HTTPClient) Get(ctx context.Context, url string, timeout time.Duration) (domain.ProbeResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ProbeResponse{}, fmt.Errorf("build request: %w", err)
	}
	if cl.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cl.cfg.UserAgent)
	}

	resp, err := cl.c.Do(req)
	if err != nil {
		return domain.ProbeResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return domain.ProbeResponse{}, fmt.Errorf("read body: %w", err)
	}
	return domain.ProbeResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
