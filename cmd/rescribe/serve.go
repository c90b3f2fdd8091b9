package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FocuswithJustin/Rescribe/internal/api"
)

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Addr           string        `help:"Listen address" default:":8080" env:"RESCRIBE_ADDR"`
	APIKey         string        `name:"api-key" help:"Require this API key (X-API-Key or Bearer token)" env:"RESCRIBE_API_KEY"`
	Store          string        `help:"Content-addressed store for exported resources" env:"RESCRIBE_STORE_DIR" type:"path"`
	MaxUpload      int64         `name:"max-upload" help:"Request body limit in bytes (0 = 64 MB)"`
	RateLimit      int           `name:"rate-limit" help:"Requests per minute per client (0 = disabled)" default:"0"`
	Burst          int           `help:"Rate limit burst size" default:"10"`
	ConvertCost    int           `name:"convert-cost" help:"Rate limit tokens charged per conversion request" default:"5"`
	JobTTL         time.Duration `name:"job-ttl" help:"How long finished jobs are kept" default:"1h"`
	AllowedOrigins []string      `name:"allowed-origins" help:"Allowed CORS and WebSocket origins (default: all)" env:"RESCRIBE_ALLOWED_ORIGINS"`
	TLSCert        string        `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey         string        `name:"tls-key" help:"TLS private key file" type:"path"`
}

func (c *ServeCmd) config() api.Config {
	return api.Config{
		Addr:              c.Addr,
		MaxUploadSize:     c.MaxUpload,
		StoreDir:          c.Store,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.Burst,
		ConversionCost:    c.ConvertCost,
		JobTTL:            c.JobTTL,
		AllowedOrigins:    c.AllowedOrigins,
		Auth: api.AuthConfig{
			Enabled: c.APIKey != "",
			APIKey:  c.APIKey,
		},
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "" || c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
	}
}

func (c *ServeCmd) Run(e *env) error {
	srv, err := api.NewServer(c.config(), e.Registry)
	if err != nil {
		if c.APIKey != "" {
			return fmt.Errorf("%w\n%s", err, api.GenerateAPIKeyExample())
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
