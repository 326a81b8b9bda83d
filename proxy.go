package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Option is a function that configures the server
type Option func(*Proxy)

// WithName sets the server name
func WithName(name string) Option {
	return func(s *Proxy) {
		s.config.Name = name
	}
}

// WithAddr sets the public listener address, overriding the config file
func WithAddr(addr string) Option {
	return func(s *Proxy) {
		s.config.Addr = addr
	}
}

// WithAdminAddr sets the admin listener address, overriding the config file
func WithAdminAddr(addr string) Option {
	return func(s *Proxy) {
		s.config.AdminAddr = addr
	}
}

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Proxy) {
		s.logger = logger
	}
}

// WithHooks replaces the default slog-backed lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *Proxy) {
		s.hooks = hooks
	}
}

// config holds server configuration
type config struct {
	Name      string
	Addr      string
	AdminAddr string
}

// Proxy is the edge router: one public listener, a host-keyed route table,
// and an optional admin listener for config and metrics.
type Proxy struct {
	config config
	logger *slog.Logger
	hooks  *Hooks

	routes      atomic.Pointer[routeTable]
	maxBodySize atomic.Int64
	transport   http.RoundTripper
	limits      *ServerConfig

	wg         sync.WaitGroup
	configMu   sync.Mutex
	configFile string  // Path to the configuration file
	edgeConfig *Config // Current configuration
}

// NewServerFromConfig creates a new edge router from configuration
func NewServerFromConfig(cfg *Config, opts ...Option) (*Proxy, error) {
	// Fill in listener and limit defaults for configs built in code
	if err := setConfigDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	server := &Proxy{
		config: config{
			Name:      "edge-proxy",
			Addr:      cfg.Server.Listen,
			AdminAddr: cfg.Server.AdminListen,
		},
		logger: slog.Default(),
		limits: cfg.Server,
	}

	// Apply options
	for _, opt := range opts {
		opt(server)
	}

	if server.hooks == nil {
		server.hooks = newProxyHooks(server.logger)
	}

	server.transport = newUpstreamTransport(cfg.Server)

	// Compile the route table from configuration
	if err := server.applyConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to build routes: %w", err)
	}

	return server, nil
}

// NewServerFromConfigFile creates a new edge router from a configuration file
func NewServerFromConfigFile(configFile string, opts ...Option) (*Proxy, error) {
	cfg, err := ParseConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	server, err := NewServerFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	server.configFile = configFile
	return server, nil
}

// applyConfig compiles a validated config into a route table and swaps it in.
// Safe to call while serving; in-flight requests keep the table they matched
// against.
func (s *Proxy) applyConfig(cfg *Config) error {
	table := make(routeTable, len(cfg.VirtualHosts))

	for _, vhost := range cfg.VirtualHosts {
		rt, err := s.buildRoute(vhost)
		if err != nil {
			return fmt.Errorf("virtual host '%s': %w", vhost.Hostname, err)
		}
		table[normalizeHost(vhost.Hostname)] = rt
	}

	s.configMu.Lock()
	s.edgeConfig = cfg
	s.configMu.Unlock()

	s.routes.Store(&table)
	s.maxBodySize.Store(int64(cfg.Server.MaxBodySize))
	observeBindings(table)

	for _, vhost := range cfg.VirtualHosts {
		s.logger.Info("Added route binding",
			"hostname", vhost.Hostname,
			"upstream", vhost.Upstream,
			"health_check", vhost.HealthCheck != nil,
		)
	}

	return nil
}

// buildRoute compiles one virtual host into its reverse proxy
func (s *Proxy) buildRoute(vhost *VirtualHost) (*route, error) {
	target, err := url.Parse(vhost.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL '%s': %w", vhost.Upstream, err)
	}

	rt := &route{
		binding: vhost,
		target:  target,
	}

	rt.reverse = &httputil.ReverseProxy{
		Rewrite:   s.rewriteFor(rt),
		Transport: s.transport,
		// Negative means flush to the client immediately; the fronted apps
		// stream incremental output over long-lived connections.
		FlushInterval: -1,
		ErrorHandler:  s.upstreamErrorHandler,
	}

	return rt, nil
}

// newUpstreamTransport builds the shared transport for upstream requests
func newUpstreamTransport(cfg *ServerConfig) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: time.Duration(cfg.SendTimeout),
		// The apps serve whatever encoding the client negotiated; the
		// router must not inject its own Accept-Encoding.
		DisableCompression: true,
		// Upgrade negotiation requires HTTP/1.1 end to end
		ForceAttemptHTTP2: false,
	}
}

// Handler returns the public routing handler
func (s *Proxy) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start starts the public and admin listeners in goroutines. Make sure to
// defer Close() after Start(). The listeners shut down gracefully when ctx
// is cancelled.
func (s *Proxy) Start(ctx context.Context) error {
	public := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.limits.ReadTimeout),
		WriteTimeout: time.Duration(s.limits.SendTimeout),
		IdleTimeout:  time.Duration(s.limits.IdleTimeout),
	}

	s.startServer(ctx, public, "edge router")
	s.logger.Info("Edge router listening", "addr", s.config.Addr, "name", s.config.Name)

	if s.config.AdminAddr != "" {
		admin := &http.Server{
			Addr:    s.config.AdminAddr,
			Handler: s.adminHandler(),
		}
		s.startServer(ctx, admin, "admin API")
		s.logger.Info("Admin API listening", "addr", s.config.AdminAddr)
	}

	return nil
}

// startServer runs one http.Server under the lifecycle context
func (s *Proxy) startServer(ctx context.Context, server *http.Server, label string) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("Server error", "server", label, "error", err)
			}
		}()

		// Wait for context cancellation to shutdown server
		<-ctx.Done()
		s.logger.Info("Shutting down server", "server", label)

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown server gracefully", "server", label, "error", err)
		} else {
			s.logger.Info("Server shutdown successfully", "server", label)
		}
	}()
}

// Close waits for the listeners to finish shutting down
func (s *Proxy) Close() {
	s.wg.Wait()
}

// Config returns the currently applied configuration
func (s *Proxy) Config() *Config {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	return s.edgeConfig
}
