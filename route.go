package proxy

import (
	"net/http/httputil"
	"net/url"
)

// Forwarding headers stamped or preserved on every proxied request.
// These are what the upstream apps rely on for client identity and
// session continuity.
const (
	// HeaderRealIP carries the client IP address as seen by the router
	HeaderRealIP = "X-Real-IP"

	// HeaderForwardedFor accumulates the chain of proxy hops; the router
	// appends the client address to any value already present
	HeaderForwardedFor = "X-Forwarded-For"

	// HeaderRequestID identifies a request across router and upstream logs.
	// Stamped by the router when the client did not send one.
	HeaderRequestID = "X-Request-ID"
)

// HealthCheck configures the probe bypass for a virtual host.
// Infrastructure health checkers identify themselves by User-Agent; matching
// requests are answered directly by the router so probes never wake the
// backend app.
type HealthCheck struct {
	// UserAgentContains is the substring to look for in the inbound
	// User-Agent header. A request whose User-Agent contains this value
	// receives HTTP 200 with an empty body and is not forwarded.
	// Example: "ELB-HealthChecker"
	UserAgentContains string `json:"user_agent_contains" yaml:"user_agent_contains"`
}

// VirtualHost binds one hostname to one upstream.
// Routing is an exact string match on the request Host header (port
// stripped); there is no wildcard or path-based routing and no fallback
// binding.
type VirtualHost struct {
	// Hostname is the exact Host header value this binding serves
	// Example: "copilot.example.com"
	Hostname string `json:"hostname" yaml:"hostname"`

	// Upstream is the base URL of the backend HTTP server all matched
	// requests are forwarded to. Must be an absolute http or https URL
	// reachable from the router.
	// Example: "http://packet-copilot:8501"
	Upstream string `json:"upstream" yaml:"upstream"`

	// HealthCheck, when set, enables the probe bypass for this host.
	// Leave nil to forward every request regardless of User-Agent.
	HealthCheck *HealthCheck `json:"health_check,omitempty" yaml:"health_check,omitempty"`
}

// route is a compiled virtual host: the parsed upstream URL plus the
// reverse proxy that forwards to it. Built once per config apply, read-only
// afterwards.
type route struct {
	binding *VirtualHost
	target  *url.URL
	reverse *httputil.ReverseProxy
}

// routeTable maps a hostname to its compiled route. Swapped atomically as a
// whole when configuration changes; individual entries are never mutated.
type routeTable map[string]*route
