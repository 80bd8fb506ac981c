package httpclient

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ternarybob/harvester/internal/common"
)

// NewClient creates a resty client carrying the configured user agent and timeout.
// Retries are left to the fetcher, so resty's own retry count stays at zero.
func NewClient(config common.FetchConfig) *resty.Client {
	client := resty.New()
	client.SetHeader("User-Agent", config.UserAgent)
	client.SetTimeout(common.ParseDurationOr(config.Timeout, 20*time.Second))
	client.SetRetryCount(0)
	return client
}

// NewBrowserClient creates a client that presents browser-like headers and session cookies
func NewBrowserClient(config common.FetchConfig, userAgent string, headers map[string]string, cookies []*http.Cookie) *resty.Client {
	client := NewClient(config)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	client.SetHeaders(headers)
	if len(cookies) > 0 {
		client.SetCookies(cookies)
	}
	return client
}

// ParseCookieHeader parses "name=value; other=value" into cookies scoped to domain.
// Malformed parts are skipped.
func ParseCookieHeader(raw string, domain string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "=") {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  strings.TrimSpace(kv[1]),
			Domain: domain,
			Path:   "/",
		})
	}
	return cookies
}

// HasCookie reports whether cookies already contains name
func HasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}
