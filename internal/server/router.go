package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/userdir/userdir/internal/database"
	"github.com/userdir/userdir/internal/users"
)

// AppState holds everything the router needs to serve requests
type AppState struct {
	Logger        *zap.Logger
	UserService   users.UserService
	HealthManager *database.HealthManager
	Options       Options
}

// Options carries the HTTP-level settings taken from config
type Options struct {
	CorsMode        string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	MaxRequestSize  int64
	DefaultPageSize int
	MaxPageSize     int
}

// NewRouter builds the gin engine with middleware, health and user routes
func NewRouter(as *AppState) (*gin.Engine, error) {
	if as == nil || as.UserService == nil || as.HealthManager == nil {
		return nil, fmt.Errorf("router requires a user service and a health manager")
	}
	logger := as.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	corsMiddleware, err := CorsMiddleware(as.Options.CorsMode, as.Options.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggerMiddleware(logger))
	router.Use(corsMiddleware)
	router.Use(RequestTimeoutMiddleware(as.Options.RequestTimeout))
	router.Use(MaxBodySizeMiddleware(as.Options.MaxRequestSize))

	router.GET("/health", healthHandler(as.HealthManager))

	handlers := users.NewUserHandlers(as.UserService, logger, users.PageLimits{
		DefaultPageSize: as.Options.DefaultPageSize,
		MaxPageSize:     as.Options.MaxPageSize,
	})
	handlers.RegisterRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, users.Envelope{Success: false, Error: "route not found"})
	})

	return router, nil
}

func healthHandler(hm *database.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := hm.Check(c.Request.Context())

		services := gin.H{}
		for name, checkErr := range results {
			if checkErr != nil {
				services[name] = "unhealthy"
			} else {
				services[name] = "healthy"
			}
		}

		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"timestamp": time.Now().Format(time.RFC3339),
				"error":     err.Error(),
				"services":  services,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"services":  services,
		})
	}
}
