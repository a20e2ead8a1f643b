package middleware

import (
	"log/slog"
	"net/http"
)

// NewUpgradeLogger logs every websocket upgrade attempt. It runs before the
// connection limiter and auth middleware, so rejected attempts still leave a
// trace with the origin that sent them.
func NewUpgradeLogger(logger *slog.Logger) Middleware {
	scoped := logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}

			scoped.Info("Upgrade attempt",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("ip", ip),
			)
			next.ServeHTTP(w, r)
		})
	}
}
