package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/dreamtales/internal/identity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RateLimitMessage is returned with 429 responses.
const RateLimitMessage = "Too many requests. Please wait a moment before trying again."

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}

// RateLimit denies requests over the limiter's budget with 429. The client
// key comes from identity.Middleware, or is derived from the request.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	decisions, err := otel.Meter("dreamtales/middleware").Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limiter decisions by outcome"),
	)
	if err != nil {
		slog.Warn("Failed to create rate limit counter", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := identity.ClientKeyFromContext(r.Context())
			if key == identity.UnknownOrigin {
				key = identity.ClientKey(r)
			}

			allowed, err := l.Allow(r.Context(), key)
			if err != nil {
				slog.Error("Rate limiter store error", "client", key, "allowed", allowed, "error", err)
			}
			if decisions != nil {
				decisions.Add(r.Context(), 1, metric.WithAttributes(attribute.Bool("allowed", allowed)))
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, RateLimitMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
