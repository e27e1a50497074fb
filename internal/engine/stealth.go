package engine

import (
	"context"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// BrowserClient sends requests with a Chrome TLS fingerprint, optionally through a proxy pool.
type BrowserClient = stealth.BrowserClient

// Re-export stealth helpers for the sources package.
var DefaultRetryConfig = stealth.DefaultRetryConfig

func RandomUserAgent() string         { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool { return stealth.IsRetryableStatus(code) }

// ChromeHeaders returns a browser-like header set with a random User-Agent.
func ChromeHeaders() map[string]string {
	h := make(map[string]string)
	for k, v := range stealth.ChromeHeaders() {
		h[k] = v
	}
	h["User-Agent"] = RandomUserAgent()
	delete(h, "Accept-Encoding") // net/http negotiates gzip and decodes it
	return h
}

// RetryHTTP sends the request built by fn, retrying transport errors and retryable statuses.
func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}
