package proxy

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete edge router configuration
type Config struct {
	// Server holds listener and forwarding settings
	Server *ServerConfig `json:"server" yaml:"server"`

	// VirtualHosts are the route bindings, one per fronted application
	VirtualHosts []*VirtualHost `json:"virtual_hosts" yaml:"virtual_hosts"`
}

// ServerConfig defines listener addresses, timeouts and request limits
type ServerConfig struct {
	// Listen is the public address accepting all routed HTTP traffic
	Listen string `json:"listen" yaml:"listen" default:":8080"`

	// AdminListen is the address of the admin API and metrics listener.
	// Empty disables the admin listener entirely.
	AdminListen string `json:"admin_listen,omitempty" yaml:"admin_listen,omitempty"`

	// ReadTimeout bounds reading a request from the client. Generous by
	// default because the fronted apps hold long interactive sessions.
	ReadTimeout Duration `json:"read_timeout" yaml:"read_timeout" default:"2h"`

	// SendTimeout bounds writing the response to the client and waiting
	// for upstream response headers
	SendTimeout Duration `json:"send_timeout" yaml:"send_timeout" default:"2h"`

	// IdleTimeout bounds how long a keep-alive connection may sit idle
	IdleTimeout Duration `json:"idle_timeout" yaml:"idle_timeout" default:"2h"`

	// MaxBodySize caps the inbound request body. Requests declaring or
	// streaming more than this are rejected before reaching the upstream.
	MaxBodySize ByteSize `json:"max_body_size" yaml:"max_body_size" default:"20m"`
}

const (
	defaultListen      = ":8080"
	defaultTimeout     = Duration(2 * time.Hour)
	defaultMaxBodySize = ByteSize(20 << 20)
)

func ParseConfig(filename string) (*Config, error) {
	// Expand path to handle environment variables and home directory
	expandedPath := expandPath(filename)

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", expandedPath, err)
	}

	return ParseConfigFromBytes(data)
}

// ParseConfigFromBytes parses configuration from byte data
func ParseConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Set defaults if needed
	if err := setConfigDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	// Post-process before validating so expanded values are what gets checked
	if err := postProcessParsedConfig(&cfg); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}

	// Validate the configuration
	if err := validateParsedConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setConfigDefaults sets default values for the configuration
func setConfigDefaults(cfg *Config) error {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultListen
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultTimeout
	}
	if cfg.Server.SendTimeout == 0 {
		cfg.Server.SendTimeout = defaultTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = defaultMaxBodySize
	}

	return nil
}

// validateParsedConfig validates the parsed configuration
func validateParsedConfig(cfg *Config) error {
	if cfg.Server == nil {
		return fmt.Errorf("server configuration is required")
	}

	if len(cfg.VirtualHosts) == 0 {
		return fmt.Errorf("at least one virtual host must be configured")
	}

	// Every inbound request must match at most one binding. Routing is
	// case-insensitive and port-blind, so hostnames may not collide after
	// normalization either.
	hostnames := make(map[string]bool)
	for i, vhost := range cfg.VirtualHosts {
		if err := validateVirtualHost(vhost); err != nil {
			return fmt.Errorf("virtual host %d validation failed: %w", i, err)
		}

		key := normalizeHost(vhost.Hostname)
		if hostnames[key] {
			return fmt.Errorf("duplicate hostname '%s'", vhost.Hostname)
		}
		hostnames[key] = true
	}

	return nil
}

// validateVirtualHost validates a single route binding
func validateVirtualHost(vhost *VirtualHost) error {
	if vhost.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}

	if strings.ContainsAny(vhost.Hostname, " /") {
		return fmt.Errorf("invalid hostname '%s'", vhost.Hostname)
	}

	if vhost.Upstream == "" {
		return fmt.Errorf("upstream is required")
	}

	target, err := url.Parse(vhost.Upstream)
	if err != nil {
		return fmt.Errorf("invalid upstream URL '%s': %w", vhost.Upstream, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fmt.Errorf("upstream URL '%s' must use http or https", vhost.Upstream)
	}
	if target.Host == "" {
		return fmt.Errorf("upstream URL '%s' has no host", vhost.Upstream)
	}

	if vhost.HealthCheck != nil && vhost.HealthCheck.UserAgentContains == "" {
		return fmt.Errorf("health_check requires user_agent_contains")
	}

	return nil
}

// postProcessParsedConfig performs post-processing on the parsed configuration
func postProcessParsedConfig(cfg *Config) error {
	if cfg.Server != nil {
		cfg.Server.Listen = os.ExpandEnv(cfg.Server.Listen)
		cfg.Server.AdminListen = os.ExpandEnv(cfg.Server.AdminListen)
	}

	for _, vhost := range cfg.VirtualHosts {
		processVirtualHostEnvironmentVars(vhost)
	}

	return nil
}

// processVirtualHostEnvironmentVars processes environment variables in a route binding
func processVirtualHostEnvironmentVars(vhost *VirtualHost) {
	vhost.Hostname = os.ExpandEnv(vhost.Hostname)
	vhost.Upstream = os.ExpandEnv(vhost.Upstream)

	if vhost.HealthCheck != nil {
		vhost.HealthCheck.UserAgentContains = os.ExpandEnv(vhost.HealthCheck.UserAgentContains)
	}
}

// expandPath expands environment variables and home directory in paths
func expandPath(path string) string {
	// Expand environment variables
	expanded := os.ExpandEnv(path)

	// Expand home directory
	if strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			expanded = filepath.Join(home, expanded[2:])
		}
	}

	return expanded
}
