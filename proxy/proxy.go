// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package proxy forwards requests to the event backend.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/middleware"
)

// maxBodyBytes bounds a request body relayed through /api/proxy
const maxBodyBytes = 10 << 20

// hopHeaders apply to a single connection and are never relayed
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// DefaultBaseURL is used when no backend URL is configured
const DefaultBaseURL = "http://localhost:8000"

type Config struct {
	BaseURL string
	// AuthToken is sent as the auth-token header on every forwarded request
	AuthToken string
	Client    *http.Client
}

// Outbound describes one request to the event backend
type Outbound struct {
	Method        string
	Path          string
	Body          []byte
	ContentType   string
	Authorization string
	AccessToken   string
}

// Forwarder relays requests to the event backend, attaching the operator's
// credentials. It serves the same-origin /api/proxy route and is the
// transport for check-in submissions.
type Forwarder struct {
	base      string
	authToken string
	client    *http.Client
}

func New(cfg Config) *Forwarder {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Forwarder{
		base:      strings.TrimRight(base, "/"),
		authToken: cfg.AuthToken,
		client:    client,
	}
}

// URL joins the backend base URL and a backend path
func (f *Forwarder) URL(path string) string {
	return f.base + "/" + strings.TrimLeft(path, "/")
}

// Header builds the headers sent to the backend. An explicit Authorization
// header wins over the access token cookie.
func (f *Forwarder) Header(out Outbound) http.Header {
	h := http.Header{}
	if out.Authorization != "" {
		h.Set("Authorization", out.Authorization)
	} else if out.AccessToken != "" {
		h.Set("Authorization", "Bearer "+out.AccessToken)
	}
	if f.authToken != "" {
		h.Set("auth-token", f.authToken)
	}
	h.Set("platform", "web")
	if out.ContentType != "" {
		h.Set("Content-Type", out.ContentType)
	}
	return h
}

// Forward sends out to the backend. The caller owns the response body.
func (f *Forwarder) Forward(ctx context.Context, out Outbound) (*http.Response, error) {
	method := out.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(out.Body) > 0 && method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(out.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.URL(out.Path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header = f.Header(out)

	return f.client.Do(req)
}

// ServeHTTP handles /api/proxy?path=<backend path>
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		middleware.JSONResponse(w, http.StatusBadRequest, map[string]string{
			"error": "Missing path query param",
		})
		return
	}

	out := Outbound{
		Method:        r.Method,
		Path:          path,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		AccessToken:   auth.AccessToken(r),
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		raw, err := io.ReadAll(body)
		body.Close()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.JSONResponse(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}
		if err != nil {
			proxyFailed(w, err)
			return
		}
		out.Body = raw
	}

	resp, err := f.Forward(r.Context(), out)
	if err != nil {
		proxyFailed(w, err)
		return
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Error("failed to relay backend response", "path", path, "error", err)
	}
}

// copyHeader relays end-to-end headers only
func copyHeader(dst, src http.Header) {
	skip := make(map[string]bool, len(hopHeaders))
	for _, h := range hopHeaders {
		skip[h] = true
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				skip[http.CanonicalHeaderKey(name)] = true
			}
		}
	}

	for k, vs := range src {
		if skip[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func proxyFailed(w http.ResponseWriter, err error) {
	slog.Error("proxy error", "error", err)
	middleware.JSONResponse(w, http.StatusInternalServerError, map[string]string{
		"error":   "Proxy failed",
		"message": err.Error(),
	})
}
