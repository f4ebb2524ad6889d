package config

import (
	"net"
	"net/url"
	"strings"
)

// SelfURL is SITE_NAME as an absolute base URL (https:// assumed), or "".
func (c *Config) SelfURL() string {
	s := strings.TrimRight(strings.TrimSpace(c.Site.Name), "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

// SiteLabel is the host shown as the lead source. It falls back to the
// public URL when SITE_NAME is unset.
func (c *Config) SiteLabel() string {
	for _, raw := range []string{c.SelfURL(), c.PublicURL()} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSpace(c.Site.Name)
}

func (c *Config) PublicURL() string {
	s := strings.TrimRight(strings.TrimSpace(c.Site.PublicURL), "/")
	if s == "" {
		return DefaultPublicURL
	}
	return s
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	port := strings.TrimSpace(c.Server.Port)
	if port == "" {
		port = "5000"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return net.JoinHostPort("0.0.0.0", port)
}
