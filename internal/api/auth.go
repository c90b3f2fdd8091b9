package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/FocuswithJustin/Rescribe/internal/logging"
)

// MinAPIKeyLength is the shortest API key the server accepts.
const MinAPIKeyLength = 16

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// publicPaths are served without a key: service info, health and the
// metrics scrape endpoint.
var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware requires the configured API key on every non-public path
// when auth is enabled. The key is read from X-API-Key or from an
// "Authorization: Bearer" header.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authCfg.Enabled || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if reason := checkAPIKey(requestAPIKey(r), authCfg); reason != "" {
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"method", r.Method,
				"reason", reason)
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestAPIKey extracts the key a client presented, or "".
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// checkAPIKey returns a client-facing reason when key is missing or wrong.
func checkAPIKey(key string, cfg AuthConfig) string {
	switch {
	case key == "":
		return "Missing API key (X-API-Key or Authorization: Bearer header)"
	case !constantTimeCompare(key, cfg.APIKey):
		return "Invalid API key"
	}
	return ""
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	if len(cfg.APIKey) < MinAPIKeyLength {
		return fmt.Errorf("API key must be at least %d characters (got %d)", MinAPIKeyLength, len(cfg.APIKey))
	}
	return nil
}

// GenerateAPIKeyExample returns a shell hint for creating a key.
func GenerateAPIKeyExample() string {
	return "Example: export RESCRIBE_API_KEY=$(openssl rand -base64 32)"
}

// constantTimeCompare compares a and b without leaking where they differ.
func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
