// Package security implements API key validation and subnet based
// authentication bypass for the HTTP transport.
package security

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"strings"

	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/logging"
)

// DefaultAPIKeyHeader is the request header checked when the configuration
// does not name one.
const DefaultAPIKeyHeader = "x-api-key"

func getLogger() *slog.Logger {
	logger := logging.ForService("security")
	if logger == nil {
		logger = slog.Default()
	}
	return logger
}

// KeyRequired reports whether requests must present an API key. Key checks
// are skipped when the feature is disabled or no keys are configured, so a
// fresh install without keys does not lock the operator out.
func KeyRequired(settings *conf.Settings) bool {
	apiKey := &settings.Security.APIKey
	return apiKey.Enabled && len(apiKey.Keys) > 0
}

// KeyHeader returns the request header carrying the API key.
func KeyHeader(settings *conf.Settings) string {
	if h := strings.TrimSpace(settings.Security.APIKey.Header); h != "" {
		return h
	}
	return DefaultAPIKeyHeader
}

// ValidKey reports whether the presented key matches any configured key.
// Comparison is constant time per candidate so response timing does not
// reveal how much of a key matched.
func ValidKey(settings *conf.Settings, presented string) bool {
	if presented == "" {
		return false
	}

	valid := false
	for _, key := range settings.Security.APIKey.Keys {
		if key == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			valid = true
		}
	}
	return valid
}

// IsRequestFromAllowedSubnet reports whether the client IP falls inside a
// subnet that bypasses API key checks. Loopback addresses always qualify
// once the bypass is enabled; beyond that the configured value is a comma
// separated list of CIDR ranges.
func IsRequestFromAllowedSubnet(settings *conf.Settings, ipStr string) bool {
	bypass := &settings.Security.AllowSubnetBypass
	if !bypass.Enabled {
		return false
	}

	logger := getLogger().With("ip", ipStr)

	if ipStr == "" {
		logger.Debug("subnet bypass check: empty client IP")
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		logger.Warn("subnet bypass check: unparseable client IP")
		return false
	}

	if ip.IsLoopback() {
		logger.Debug("subnet bypass: loopback client allowed")
		return true
	}

	for cidr := range strings.SplitSeq(bypass.Subnet, ",") {
		trimmed := strings.TrimSpace(cidr)
		if trimmed == "" {
			continue
		}
		_, subnet, err := net.ParseCIDR(trimmed)
		if err != nil {
			logger.Warn("subnet bypass check: invalid CIDR in configuration", "cidr", trimmed, "error", err)
			continue
		}
		if subnet.Contains(ip) {
			logger.Debug("subnet bypass: client inside allowed subnet", "cidr", trimmed)
			return true
		}
	}
	return false
}
