package proxy

import (
	"log/slog"
	"net/http"
	"time"
)

// Hooks collects callbacks observing the request lifecycle. All hooks are
// optional; registration must finish before the proxy starts serving.
type Hooks struct {
	onAccept  []OnAcceptHook
	onForward []OnForwardHook
	onBypass  []OnBypassHook
	onReject  []OnRejectHook
	onError   []OnErrorHook
}

type OnAcceptHook func(r *http.Request, host string)
type OnForwardHook func(r *http.Request, host, upstream string, status int, elapsed time.Duration)
type OnBypassHook func(r *http.Request, host string)
type OnRejectHook func(r *http.Request, host, reason string, status int)
type OnErrorHook func(r *http.Request, host string, err error)

// AddOnAccept registers a hook fired when a request arrives, before routing
func (h *Hooks) AddOnAccept(hook OnAcceptHook) {
	h.onAccept = append(h.onAccept, hook)
}

// AddOnForward registers a hook fired after a proxied request completes
func (h *Hooks) AddOnForward(hook OnForwardHook) {
	h.onForward = append(h.onForward, hook)
}

// AddOnBypass registers a hook fired when a health-check probe is answered
// without contacting the upstream
func (h *Hooks) AddOnBypass(hook OnBypassHook) {
	h.onBypass = append(h.onBypass, hook)
}

// AddOnReject registers a hook fired when a request is refused before
// forwarding (unmatched host, oversized body)
func (h *Hooks) AddOnReject(hook OnRejectHook) {
	h.onReject = append(h.onReject, hook)
}

// AddOnError registers a hook fired when forwarding to the upstream fails
func (h *Hooks) AddOnError(hook OnErrorHook) {
	h.onError = append(h.onError, hook)
}

func (h *Hooks) accept(r *http.Request, host string) {
	for _, hook := range h.onAccept {
		hook(r, host)
	}
}

func (h *Hooks) forward(r *http.Request, host, upstream string, status int, elapsed time.Duration) {
	for _, hook := range h.onForward {
		hook(r, host, upstream, status, elapsed)
	}
}

func (h *Hooks) bypass(r *http.Request, host string) {
	for _, hook := range h.onBypass {
		hook(r, host)
	}
}

func (h *Hooks) reject(r *http.Request, host, reason string, status int) {
	for _, hook := range h.onReject {
		hook(r, host, reason, status)
	}
}

func (h *Hooks) err(r *http.Request, host string, err error) {
	for _, hook := range h.onError {
		hook(r, host, err)
	}
}

// newProxyHooks wires the default access logging
func newProxyHooks(logger *slog.Logger) *Hooks {
	hooks := &Hooks{}

	hooks.AddOnAccept(func(r *http.Request, host string) {
		logger.Debug("accepted request",
			"host", host,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(HeaderRequestID),
		)
	})

	hooks.AddOnForward(func(r *http.Request, host, upstream string, status int, elapsed time.Duration) {
		logger.Info("proxied request",
			"host", host,
			"upstream", upstream,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"elapsed", elapsed,
			"request_id", r.Header.Get(HeaderRequestID),
		)
	})

	hooks.AddOnBypass(func(r *http.Request, host string) {
		logger.Debug("answered health-check probe",
			"host", host,
			"user_agent", r.UserAgent(),
		)
	})

	hooks.AddOnReject(func(r *http.Request, host, reason string, status int) {
		logger.Warn("rejected request",
			"host", host,
			"reason", reason,
			"status", status,
			"method", r.Method,
			"path", r.URL.Path,
		)
	})

	hooks.AddOnError(func(r *http.Request, host string, err error) {
		logger.Error("upstream error",
			"host", host,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(HeaderRequestID),
		)
	})

	return hooks
}
