package checks

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// TargetValidator guards every executor against SSRF and injection from
// user-supplied targets. Consulted before any network call is issued.
type TargetValidator struct {
	allowPrivateIPs bool
}

// NewTargetValidator creates a target validator. allowPrivateIPs is the
// explicit allow-list flag for internal deployments.
func NewTargetValidator(allowPrivateIPs bool) *TargetValidator {
	return &TargetValidator{allowPrivateIPs: allowPrivateIPs}
}

// hostMetaChars are characters that must never reach a subprocess or raw
// socket call from a hostname-style target.
const hostMetaChars = ";|&$><`\\\"'(){}*?!\n\r\t "

// ValidateURL validates an http(s) target URL.
func (v *TargetValidator) ValidateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("invalid URL format: %v", err)}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Reason: "only http and https schemes are allowed"}
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return &ValidationError{Reason: "URL must have a hostname"}
	}

	return v.screenHostname(hostname)
}

// ValidateHost validates a bare hostname or IP target (ping, port checks).
// The metacharacter screen runs before any resolution or socket call.
func (v *TargetValidator) ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return &ValidationError{Reason: "host is required"}
	}

	if strings.ContainsAny(host, hostMetaChars) {
		return &SecurityRejection{Reason: "host contains forbidden characters"}
	}

	// Bracketed IPv6 literals are fine; strip for resolution.
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")

	return v.screenHostname(host)
}

func (v *TargetValidator) screenHostname(hostname string) error {
	if v.isBlockedHostname(hostname) {
		return &SecurityRejection{Reason: fmt.Sprintf("access to %q is not allowed", hostname)}
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("failed to resolve hostname: %v", err)}
	}

	if len(ips) == 0 {
		return &ValidationError{Reason: "hostname does not resolve to any IP address"}
	}

	for _, ip := range ips {
		if err := v.validateIP(ip); err != nil {
			return &SecurityRejection{Reason: fmt.Sprintf("IP address %s is not allowed: %v", ip, err)}
		}
	}

	return nil
}

// isBlockedHostname checks the explicit hostname blocklist.
func (v *TargetValidator) isBlockedHostname(hostname string) bool {
	hostname = strings.ToLower(hostname)

	localhostVariations := []string{
		"localhost",
		"localhost.localdomain",
		"127.0.0.1",
		"[::1]",
		"::1",
		"0.0.0.0",
	}

	for _, blocked := range localhostVariations {
		if hostname == blocked {
			return !v.allowPrivateIPs
		}
	}

	// Cloud metadata endpoints stay blocked even with the allow flag set.
	metadataEndpoints := []string{
		"169.254.169.254", // AWS, Azure, GCP metadata
		"metadata.google.internal",
		"169.254.170.2", // AWS ECS metadata
		"fd00:ec2::254", // AWS IMDSv2 IPv6
	}

	for _, blocked := range metadataEndpoints {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return true
		}
	}

	return false
}

// validateIP checks if a resolved IP address is allowed
func (v *TargetValidator) validateIP(ip net.IP) error {
	if isMetadataIP(ip) {
		return fmt.Errorf("access to cloud metadata addresses is not allowed")
	}

	if v.allowPrivateIPs {
		return nil
	}

	if isPrivateIP(ip) {
		return fmt.Errorf("access to private IP addresses is not allowed")
	}

	if ip.IsLoopback() {
		return fmt.Errorf("access to loopback addresses is not allowed")
	}

	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("access to link-local addresses is not allowed")
	}

	if ip.IsMulticast() {
		return fmt.Errorf("access to multicast addresses is not allowed")
	}

	if ip.IsUnspecified() {
		return fmt.Errorf("access to unspecified addresses is not allowed")
	}

	return nil
}

func isMetadataIP(ip net.IP) bool {
	return ip.Equal(net.ParseIP("169.254.169.254")) || ip.Equal(net.ParseIP("169.254.170.2"))
}

// isPrivateIP checks if an IP is in a private range
func isPrivateIP(ip net.IP) bool {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16", // Link-local / AWS metadata
		"127.0.0.0/8",    // Loopback
	}

	for _, cidr := range privateRanges {
		_, network, _ := net.ParseCIDR(cidr)
		if network.Contains(ip) {
			return true
		}
	}

	if ip.To4() == nil {
		privateV6Ranges := []string{
			"fc00::/7",  // Unique local address
			"fe80::/10", // Link-local
			"::1/128",   // Loopback
		}

		for _, cidr := range privateV6Ranges {
			_, network, _ := net.ParseCIDR(cidr)
			if network.Contains(ip) {
				return true
			}
		}
	}

	return false
}
