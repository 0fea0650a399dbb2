package feed

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// NewHTTPClient returns the client used for feeds and article pages. Unless
// allowPrivate is set, requests to loopback, private and link-local
// addresses are refused after DNS resolution, since every URL it visits comes
// from third-party feeds.
func NewHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}
