package server

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/userdir/userdir/internal/config"
)

// CorsConfig builds the single CORS policy for this deployment. The allow-list
// and wildcard policies are mutually exclusive.
func CorsConfig(mode string, allowedOrigins []string) (cors.Config, error) {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	switch mode {
	case config.CorsModeAllowList:
		if len(allowedOrigins) == 0 {
			return cors.Config{}, fmt.Errorf("cors allowlist mode requires at least one origin")
		}
		cfg.AllowOrigins = allowedOrigins
	case config.CorsModeWildcard:
		cfg.AllowAllOrigins = true
	default:
		return cors.Config{}, fmt.Errorf("unsupported cors mode: %q", mode)
	}

	if err := cfg.Validate(); err != nil {
		return cors.Config{}, fmt.Errorf("invalid cors config: %w", err)
	}
	return cfg, nil
}

// CorsMiddleware returns the gin handler for the configured policy
func CorsMiddleware(mode string, allowedOrigins []string) (gin.HandlerFunc, error) {
	cfg, err := CorsConfig(mode, allowedOrigins)
	if err != nil {
		return nil, err
	}
	return cors.New(cfg), nil
}
