package netcheck

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the probe client: bounded timeouts, no redirects
// followed (any answer counts).
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   2,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPProber sends HEAD requests. Any HTTP response, whatever the status,
// means the host is reachable.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

func NewHTTPProber(client *http.Client, userAgent string) *HTTPProber {
	return &HTTPProber{client: client, userAgent: userAgent}
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
