package main

import (
	"log"
	"net/http"

	"fintrack/internal/shared/config"
	"fintrack/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)
	mux.HandleFunc("/api/auth/oauth/url", deps.AuthHandler.HandleOAuthURL)
	mux.HandleFunc("/api/auth/oauth/callback", deps.AuthHandler.HandleOAuthCallback)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/users/me", authMiddleware(http.HandlerFunc(deps.UserHandler.HandleMe)))

	mux.Handle("/api/misa/config", authMiddleware(http.HandlerFunc(deps.ProviderConfigHandler.HandleConfig)))
	mux.Handle("/api/misa/config/activate", authMiddleware(http.HandlerFunc(deps.ProviderConfigHandler.HandleActivate)))
	mux.Handle("/api/misa/config/validate", authMiddleware(http.HandlerFunc(deps.ProviderConfigHandler.HandleValidate)))

	mux.Handle("/api/misa/wallets", authMiddleware(http.HandlerFunc(deps.MisaHandler.HandleWallets)))
	mux.Handle("/api/misa/wallets/summary", authMiddleware(http.HandlerFunc(deps.MisaHandler.HandleWalletSummary)))
	mux.Handle("/api/misa/addresses", authMiddleware(http.HandlerFunc(deps.MisaHandler.HandleAddresses)))
	mux.Handle("/api/misa/import", authMiddleware(http.HandlerFunc(deps.MisaHandler.HandleImport)))

	mux.Handle("/api/income", authMiddleware(http.HandlerFunc(deps.FinanceHandler.HandleMonthlyIncome)))
	mux.Handle("/api/expenses", authMiddleware(http.HandlerFunc(deps.FinanceHandler.HandleExpenses)))

	// Global middleware
	handler := middleware.Logging(
		middleware.Tracing(
			middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)(
				middleware.CORS(mux))))

	// OpenTelemetry HTTP instrumentation
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}

	// Security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
