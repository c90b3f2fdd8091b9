package api

import "time"

// DefaultMaxUploadSize bounds request bodies for /convert and /jobs (64 MB).
const DefaultMaxUploadSize = 64 << 20

// Config holds server configuration.
type Config struct {
	Addr              string
	MaxUploadSize     int64         // Request body limit in bytes (0 = DefaultMaxUploadSize)
	StoreDir          string        // Content-addressed resource store (empty = resources inline only)
	RateLimitRequests int           // Requests per minute (0 = disabled)
	RateLimitBurst    int           // Burst size
	ConversionCost    int           // Tokens charged per conversion request (0 = DefaultConversionCost)
	JobTTL            time.Duration // How long finished jobs are kept (0 = forever)
	Auth              AuthConfig    // Authentication configuration
	TLS               TLSConfig     // TLS configuration
	AllowedOrigins    []string      // CORS and WebSocket allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

func (c Config) maxUploadSize() int64 {
	if c.MaxUploadSize <= 0 {
		return DefaultMaxUploadSize
	}
	return c.MaxUploadSize
}

// websocketConfig derives the /ws security settings from the server config.
func (c Config) websocketConfig() WebSocketSecurityConfig {
	ws := DefaultWebSocketSecurityConfig()
	if len(c.AllowedOrigins) > 0 {
		ws.AllowedOrigins = c.AllowedOrigins
	}
	ws.RequireAuth = c.Auth.Enabled
	ws.AuthConfig = c.Auth
	return ws
}
