package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLValidator checks URLs handed to the network layer: configured API and
// feed endpoints, and article URLs bookmarked by hand.
type URLValidator struct {
	// AllowLocalhost permits loopback hosts, used by tests and local mirrors.
	AllowLocalhost bool
	// AllowPrivateIPs permits RFC 1918 and link-local addresses.
	AllowPrivateIPs bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewURLValidator creates a new validator with secure defaults
func NewURLValidator() *URLValidator {
	return &URLValidator{
		AllowLocalhost:  false,
		AllowPrivateIPs: false,
		MaxLength:       2048,
	}
}

// NewPermissiveURLValidator creates a validator that allows local development
func NewPermissiveURLValidator() *URLValidator {
	return &URLValidator{
		AllowLocalhost:  true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

// Endpoint validates a configured base URL and returns its normalized form.
// A missing scheme defaults to https and a trailing slash is dropped.
func (v *URLValidator) Endpoint(input string) (string, error) {
	input = strings.TrimSpace(input)
	if err := v.checkRaw(input); err != nil {
		return "", err
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	parsedURL, err := v.parse(input)
	if err != nil {
		return "", err
	}

	if isSuspiciousHostname(parsedURL.Hostname()) {
		return "", fmt.Errorf("suspicious hostname detected")
	}

	if strings.Contains(parsedURL.Path, "..") {
		return "", fmt.Errorf("directory traversal patterns not allowed in URL path")
	}

	return strings.TrimSuffix(parsedURL.String(), "/"), nil
}

// ArticleURL checks that input is an absolute http(s) URL. The value is
// returned trimmed but otherwise unchanged since it is a bookmark identity.
func (v *URLValidator) ArticleURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if err := v.checkRaw(input); err != nil {
		return "", err
	}
	if _, err := v.parse(input); err != nil {
		return "", err
	}
	return input, nil
}

func (v *URLValidator) checkRaw(input string) error {
	if input == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` ") {
		return fmt.Errorf("URL contains invalid characters")
	}
	return nil
}

func (v *URLValidator) parse(input string) (*url.URL, error) {
	parsedURL, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL must use http or https protocol")
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("URL must have a valid hostname")
	}
	if err := v.validateHostSecurity(parsedURL.Hostname()); err != nil {
		return nil, err
	}
	if strings.Contains(parsedURL.RawQuery, "<script") || strings.Contains(parsedURL.RawQuery, "javascript:") {
		return nil, fmt.Errorf("suspicious query parameters detected")
	}
	return parsedURL, nil
}

func (v *URLValidator) validateHostSecurity(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	if !v.AllowLocalhost && isLocalhost(hostname) {
		return fmt.Errorf("localhost URLs are not permitted")
	}

	if !v.AllowPrivateIPs && !isLocalhost(hostname) {
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("private IP addresses are not permitted")
		}
	}

	return nil
}

func isLocalhost(hostname string) bool {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLoopback()
}

// isSuspiciousHostname rejects placeholder and broadcast hosts that never
// serve a real endpoint.
func isSuspiciousHostname(hostname string) bool {
	suspicious := []string{
		"test.com",
		"localhost.com",
		"0.0.0.0",
		"255.255.255.255",
	}

	hostname = strings.ToLower(hostname)
	for _, sus := range suspicious {
		if hostname == sus {
			return true
		}
	}
	return false
}
