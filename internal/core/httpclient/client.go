// Package httpclient configures the HTTP client used to call the geoDB and the
// places host.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewOutbound creates a new outbound http client. A non-positive timeout
// falls back to DefaultTimeout.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
