package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry wraps an http.Handler with OpenTelemetry instrumentation.
func Telemetry(next http.Handler) http.Handler {
	return otelhttp.NewMiddleware("fintrack-api")(next)
}
