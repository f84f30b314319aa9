package telemetry

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern  = regexp.MustCompile(`\b(?:https?|ftp|ws|wss)://\S+`)
	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage replaces every URL in a telemetry message with a stable
// anonymized token. File paths and hostnames outside URLs are left alone;
// error messages here never embed user paths, only endpoints.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL maps a URL onto a deterministic token that preserves the
// parts useful for debugging (scheme, host class, port, path shape) while
// dropping everything identifying. Identical URLs produce identical tokens,
// so occurrence counting in the telemetry backend still works.
func AnonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var parts []string
	if parsed.Scheme != "" {
		parts = append(parts, parsed.Scheme)
	}
	if host := parsed.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if parsed.Port() != "" {
		parts = append(parts, "port-"+parsed.Port())
	}
	if parsed.Path != "" && parsed.Path != "/" {
		parts = append(parts, anonymizePath(parsed.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// categorizeHost buckets a hostname into a coarse class instead of
// reporting it.
func categorizeHost(host string) string {
	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case isIPAddress(host):
		return "public-ip"
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

// anonymizePath keeps the segment count and the shape of each segment but
// replaces the content with short hashes.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch {
		case segment == "":
		case isNumeric(segment):
			out = append(out, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			out = append(out, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}
	return strings.Join(out, "/")
}

func isPrivateIP(host string) bool {
	privatePrefixes := []string{
		"10.", "192.168.", "169.254.",
		"172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.",
		"172.22.", "172.23.", "172.24.", "172.25.", "172.26.", "172.27.",
		"172.28.", "172.29.", "172.30.", "172.31.",
		"fc00:", "fd00:", "fe80:",
	}
	lower := strings.ToLower(host)
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	if ipv4Pattern.MatchString(host) {
		return true
	}
	return strings.Contains(host, ":")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
