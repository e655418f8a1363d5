package resolve

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient builds the client used for lookup calls, with explicit
// dial and transport timeouts so a stuck lookup service cannot hold a
// resolution open indefinitely. A context deadline can still override
// the total timeout.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   30 * time.Second,
	}
}
