package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MonitorConfig is the tagged union of per-type check configuration.
// Exactly one variant is set, keyed by the monitor's type; parsing and
// validation happen here at the union boundary, not inside executors.
type MonitorConfig struct {
	HTTP      *HTTPConfig      `json:"http,omitempty"`
	Website   *WebsiteConfig   `json:"website,omitempty"`
	Ping      *PingConfig      `json:"ping,omitempty"`
	Port      *PortConfig      `json:"port,omitempty"`
	Synthetic *SyntheticConfig `json:"synthetic,omitempty"`
}

// HTTPConfig configures an http_request monitor.
type HTTPConfig struct {
	Method              string            `json:"method,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`
	Body                string            `json:"body,omitempty"`
	ExpectedStatusCodes []string          `json:"expected_status_codes,omitempty"`
	Keyword             string            `json:"keyword,omitempty"`
	InvertKeyword       bool              `json:"invert_keyword,omitempty"`
	JSONPath            string            `json:"json_path,omitempty"`
	JSONPathExpected    string            `json:"json_path_expected,omitempty"`
	BasicAuthUser       string            `json:"basic_auth_user,omitempty"`
	BasicAuthPass       string            `json:"basic_auth_pass,omitempty"`
	BearerToken         string            `json:"bearer_token,omitempty"`
	FollowRedirects     *bool             `json:"follow_redirects,omitempty"`
	IgnoreTLS           bool              `json:"ignore_tls,omitempty"`
	TimeoutSeconds      int               `json:"timeout_seconds,omitempty"`
}

// WebsiteConfig configures a website monitor: HTTP semantics plus optional
// TLS certificate inspection.
type WebsiteConfig struct {
	HTTPConfig
	SSLCheckEnabled         bool `json:"ssl_check_enabled,omitempty"`
	SSLCheckIntervalSeconds int  `json:"ssl_check_interval_seconds,omitempty"`
}

// PingConfig configures a ping_host monitor.
type PingConfig struct {
	PacketSize     int  `json:"packet_size,omitempty"`
	Privileged     bool `json:"privileged,omitempty"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty"`
}

// PortProtocol is the transport probed by a port_check monitor.
type PortProtocol string

const (
	ProtocolTCP PortProtocol = "tcp"
	ProtocolUDP PortProtocol = "udp"
)

// PortConfig configures a port_check monitor.
type PortConfig struct {
	Port           int          `json:"port"`
	Protocol       PortProtocol `json:"protocol,omitempty"`
	TimeoutSeconds int          `json:"timeout_seconds,omitempty"`
}

// SyntheticConfig configures a synthetic_test monitor.
type SyntheticConfig struct {
	ScriptRef      string `json:"script_ref"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ParseMonitorConfig decodes raw JSON into the variant matching the monitor
// type and validates it.
func ParseMonitorConfig(t MonitorType, raw []byte) (*MonitorConfig, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	cfg := &MonitorConfig{}
	var err error

	switch t {
	case TypeHTTPRequest:
		v := &HTTPConfig{}
		err = json.Unmarshal(raw, v)
		cfg.HTTP = v
	case TypeWebsite:
		v := &WebsiteConfig{}
		err = json.Unmarshal(raw, v)
		cfg.Website = v
	case TypePingHost:
		v := &PingConfig{}
		err = json.Unmarshal(raw, v)
		cfg.Ping = v
	case TypePortCheck:
		v := &PortConfig{}
		err = json.Unmarshal(raw, v)
		cfg.Port = v
	case TypeSyntheticTest:
		v := &SyntheticConfig{}
		err = json.Unmarshal(raw, v)
		cfg.Synthetic = v
	default:
		return nil, &ConfigError{Field: "type", Reason: fmt.Sprintf("unknown monitor type %q", t)}
	}

	if err != nil {
		return nil, fmt.Errorf("decoding %s config: %w", t, err)
	}

	if err := cfg.Validate(t); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the variant matching the monitor type is set and
// well-formed.
func (c *MonitorConfig) Validate(t MonitorType) error {
	switch t {
	case TypeHTTPRequest:
		if c.HTTP == nil {
			return &ConfigError{Field: "http", Reason: "missing config for http_request monitor"}
		}
		return c.HTTP.validate()
	case TypeWebsite:
		if c.Website == nil {
			return &ConfigError{Field: "website", Reason: "missing config for website monitor"}
		}
		if err := c.Website.HTTPConfig.validate(); err != nil {
			return err
		}
		if c.Website.SSLCheckIntervalSeconds < 0 {
			return &ConfigError{Field: "ssl_check_interval_seconds", Reason: "must not be negative"}
		}
		return nil
	case TypePingHost:
		if c.Ping == nil {
			return &ConfigError{Field: "ping", Reason: "missing config for ping_host monitor"}
		}
		if c.Ping.PacketSize < 0 || c.Ping.PacketSize > 65500 {
			return &ConfigError{Field: "packet_size", Reason: "must be between 0 and 65500"}
		}
		return nil
	case TypePortCheck:
		if c.Port == nil {
			return &ConfigError{Field: "port", Reason: "missing config for port_check monitor"}
		}
		if c.Port.Port < 1 || c.Port.Port > 65535 {
			return &ConfigError{Field: "port", Reason: "must be between 1 and 65535"}
		}
		switch c.Port.Protocol {
		case "", ProtocolTCP, ProtocolUDP:
		default:
			return &ConfigError{Field: "protocol", Reason: "must be tcp or udp"}
		}
		return nil
	case TypeSyntheticTest:
		if c.Synthetic == nil {
			return &ConfigError{Field: "synthetic", Reason: "missing config for synthetic_test monitor"}
		}
		if strings.TrimSpace(c.Synthetic.ScriptRef) == "" {
			return &ConfigError{Field: "script_ref", Reason: "script reference is required"}
		}
		return nil
	}
	return &ConfigError{Field: "type", Reason: fmt.Sprintf("unknown monitor type %q", t)}
}

func (h *HTTPConfig) validate() error {
	switch strings.ToUpper(h.Method) {
	case "", "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return &ConfigError{Field: "method", Reason: fmt.Sprintf("unsupported method %q", h.Method)}
	}
	if h.TimeoutSeconds < 0 {
		return &ConfigError{Field: "timeout_seconds", Reason: "must not be negative"}
	}
	if h.JSONPath != "" && h.JSONPathExpected == "" {
		return &ConfigError{Field: "json_path_expected", Reason: "required when json_path is set"}
	}
	return nil
}

// TimeoutSeconds returns the configured timeout for the active variant, or
// zero when unset (callers substitute the per-type default).
func (c *MonitorConfig) TimeoutSeconds() int {
	switch {
	case c.HTTP != nil:
		return c.HTTP.TimeoutSeconds
	case c.Website != nil:
		return c.Website.TimeoutSeconds
	case c.Ping != nil:
		return c.Ping.TimeoutSeconds
	case c.Port != nil:
		return c.Port.TimeoutSeconds
	case c.Synthetic != nil:
		return c.Synthetic.TimeoutSeconds
	}
	return 0
}

// variant returns the active variant for JSON storage so the column holds
// the flat per-type object rather than the union wrapper.
func (c *MonitorConfig) variant() interface{} {
	switch {
	case c.HTTP != nil:
		return c.HTTP
	case c.Website != nil:
		return c.Website
	case c.Ping != nil:
		return c.Ping
	case c.Port != nil:
		return c.Port
	case c.Synthetic != nil:
		return c.Synthetic
	}
	return struct{}{}
}
