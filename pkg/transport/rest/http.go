package rest

import (
	"net/http"
	"strings"
)

// HTTPDoer is a minimal interface for HTTP clients
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// JoinURL appends a relative path to a base URL without doubling slashes.
// Absolute endpoints are returned unchanged.
func JoinURL(baseURL, endpoint string) string {
	if endpoint == "" {
		return baseURL
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
