// Package identity derives per-client keys used for rate limiting and for
// locating a client's conversation when it does not send an explicit chat id.
package identity

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"strings"
)

const (
	// ForwardedForHeader is consulted first for the client origin.
	ForwardedForHeader = "X-Forwarded-For"
	// ConnectingIPHeader is set by the edge proxy in front of some deployments.
	ConnectingIPHeader = "CF-Connecting-IP"
	// UnknownOrigin is used when no origin header is present.
	UnknownOrigin = "unknown"
	// ChatIDParam is the query/body field carrying an explicit chat id.
	ChatIDParam = "chatId"

	derivedSessionIDLen = 16
)

type contextKey int

const (
	clientKeyKey contextKey = iota
)

// ClientKeyFromContext extracts the rate-limit key from the request context.
func ClientKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKeyKey).(string); ok {
		return v
	}
	return UnknownOrigin
}

// WithClientKey stores a rate-limit key in ctx.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey, key)
}

// Origin returns the best-effort client network origin from proxy headers:
// the first X-Forwarded-For hop, then CF-Connecting-IP, else "unknown".
func Origin(r *http.Request) string {
	if xff := r.Header.Get(ForwardedForHeader); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(ConnectingIPHeader)); ip != "" {
		return ip
	}
	return UnknownOrigin
}

// DeriveSessionID builds the fallback session key from origin and user agent.
// Clients behind the same network path with identical user agents collide.
func DeriveSessionID(r *http.Request) string {
	raw := Origin(r) + ":" + r.UserAgent()
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))
	if len(encoded) > derivedSessionIDLen {
		encoded = encoded[:derivedSessionIDLen]
	}
	return encoded
}

// ResolveSessionID returns explicitID verbatim when set, else the derived key.
func ResolveSessionID(r *http.Request, explicitID string) string {
	if explicitID != "" {
		return explicitID
	}
	return DeriveSessionID(r)
}

// ClientKey returns the rate-limit key for r. Requests without proxy headers
// fall back to the connection address so they do not share one bucket.
func ClientKey(r *http.Request) string {
	if origin := Origin(r); origin != UnknownOrigin {
		return origin
	}
	if ip := IPFromRequest(r); ip != "" {
		return ip
	}
	return UnknownOrigin
}

// Middleware injects the per-request client key.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientKey(r.Context(), ClientKey(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
