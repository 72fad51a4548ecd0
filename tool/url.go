package tool

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildWebSocketURL turns the fleet server URL into the ws:// or wss:// channel URL,
// the same way the browser derived it from window.location.
func BuildWebSocketURL(serverURL, path string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL has no host: %s", serverURL)
	}
	u.Path = joinPath(u.Path, path)
	return u.String(), nil
}

// BuildRESTBaseURL returns serverURL + basePath without a trailing slash.
func BuildRESTBaseURL(serverURL, basePath string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = joinPath(u.Path, basePath)
	return strings.TrimRight(u.String(), "/"), nil
}

// BuildTargetURL makes an absolute link to a page of the fleet web app.
func BuildTargetURL(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ServerHost returns the bare host name of the server URL (no port).
func ServerHost(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("server URL has no host: %s", serverURL)
	}
	return u.Hostname(), nil
}

func joinPath(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.Trim(path, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	return base + "/" + path
}
