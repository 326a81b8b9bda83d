package proxy

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/google/uuid"
)

// handleRequest dispatches one inbound request: exact-match the Host header
// against the route table, short-circuit health-check probes, enforce the
// body cap, then hand off to the route's reverse proxy.
func (s *Proxy) handleRequest(w http.ResponseWriter, r *http.Request) {
	host := normalizeHost(r.Host)
	ensureRequestID(r)
	s.hooks.accept(r, host)

	table := s.routes.Load()
	rt := (*table)[host]
	if rt == nil {
		// No binding for this authority. 421 tells the client this server
		// is not configured for the requested host.
		observeRejection(rejectReasonNoRoute)
		observeRequest(host, http.StatusMisdirectedRequest)
		s.hooks.reject(r, host, "no matching virtual host", http.StatusMisdirectedRequest)
		http.Error(w, "421 misdirected request", http.StatusMisdirectedRequest)
		return
	}

	if hc := rt.binding.HealthCheck; hc != nil && strings.Contains(r.UserAgent(), hc.UserAgentContains) {
		// Infrastructure probe: answer 200 with no body, never wake the app
		observeBypass()
		observeRequest(host, http.StatusOK)
		s.hooks.bypass(r, host)
		w.WriteHeader(http.StatusOK)
		return
	}

	maxBody := s.maxBodySize.Load()
	if r.ContentLength > maxBody {
		// Declared oversize: reject before dialing the upstream
		observeRejection(rejectReasonBodyTooLarge)
		observeRequest(host, http.StatusRequestEntityTooLarge)
		s.hooks.reject(r, host, "request body exceeds limit", http.StatusRequestEntityTooLarge)
		http.Error(w, "413 request entity too large", http.StatusRequestEntityTooLarge)
		return
	}
	if r.Body != nil {
		// Chunked bodies carry no length up front; cap them mid-stream
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}

	rec := &statusRecorder{ResponseWriter: w}
	DefaultMetrics.ObservedValues.InFlightRequests.Inc()
	start := time.Now()

	rt.reverse.ServeHTTP(rec, r)

	DefaultMetrics.ObservedValues.InFlightRequests.Dec()
	status := rec.Status()
	observeRequest(host, status)
	s.hooks.forward(r, host, rt.binding.Upstream, status, time.Since(start))
}

// rewriteFor builds the outbound-request rewrite for one route
func (s *Proxy) rewriteFor(rt *route) func(*httputil.ProxyRequest) {
	return func(pr *httputil.ProxyRequest) {
		pr.SetURL(rt.target)

		// The fronted apps generate URLs and cookies against the public
		// hostname, so it must survive the hop.
		pr.Out.Host = pr.In.Host

		pr.SetXForwarded()

		clientIP := requestClientIP(pr.In)
		if clientIP != "" {
			pr.Out.Header.Set(HeaderRealIP, clientIP)

			// SetXForwarded discards the inbound chain; restore it and
			// append this hop, nginx $proxy_add_x_forwarded_for style.
			if prior := pr.In.Header.Get(HeaderForwardedFor); prior != "" {
				pr.Out.Header.Set(HeaderForwardedFor, prior+", "+clientIP)
			}
		}

		// Upgrade requests already carry Connection: Upgrade restored by
		// the reverse proxy; everything else is a one-shot exchange.
		if pr.Out.Header.Get("Upgrade") == "" {
			pr.Out.Header.Set("Connection", "close")
		}
	}
}

// upstreamErrorHandler maps forwarding failures to client responses.
// No retries: a failed upstream request surfaces as a gateway error.
func (s *Proxy) upstreamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	host := normalizeHost(r.Host)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		observeRejection(rejectReasonBodyTooLarge)
		s.hooks.reject(r, host, "request body exceeds limit", http.StatusRequestEntityTooLarge)
		http.Error(w, "413 request entity too large", http.StatusRequestEntityTooLarge)
		return
	}

	s.hooks.err(r, host, err)
	http.Error(w, "502 bad gateway", http.StatusBadGateway)
}

// normalizeHost strips any port and lowercases for exact-match routing
func normalizeHost(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}

// requestClientIP extracts the client address without its port
func requestClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ensureRequestID stamps a request ID when the client did not send one
func ensureRequestID(r *http.Request) {
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}
}

// statusRecorder captures the response status for logging and metrics while
// delegating everything else, including Flush and Hijack via Unwrap, to the
// underlying writer.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the real writer
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Status returns the recorded status. Hijacked upgrade responses bypass
// WriteHeader entirely, which can only mean a successful protocol switch.
func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusSwitchingProtocols
	}
	return w.status
}
