package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/userdir/userdir/internal/config"
	"github.com/userdir/userdir/internal/database"
	"github.com/userdir/userdir/internal/server"
	"github.com/userdir/userdir/internal/users"
)

func main() {
	// Load configuration
	config.Load()
	if err := config.Get().Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger()
	defer func() { _ = logger.Sync() }()
	logger.Info("Configuration loaded",
		zap.String("driver", config.Database().Driver),
		zap.String("cors_mode", config.Cors().Mode))

	ctx := context.Background()

	db, err := openDatabase(ctx)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	if err := users.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to create users table", zap.Error(err))
	}

	as := newAppState(db, logger)

	gin.SetMode(gin.ReleaseMode)
	router, err := server.NewRouter(as)
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	addr := config.Http().Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	done := setupSignalHandler(srv, db, logger)

	logger.Info("Starting user directory server", zap.String("address", addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	logger.Info("Server shutdown complete")
}

func openDatabase(ctx context.Context) (*bun.DB, error) {
	dbConfig := config.Database()
	return database.Open(ctx, database.Options{
		Driver:             dbConfig.Driver,
		DSN:                dbConfig.Postgres.DSN(),
		Path:               dbConfig.SQLite.Path,
		MaxOpenConnections: dbConfig.MaxOpenConnections,
	})
}

// newAppState wires store, service and health checks together
func newAppState(db *bun.DB, logger *zap.Logger) *server.AppState {
	store := users.NewUserStore(db)
	service := users.NewUserService(store, config.Database().QueryTimeoutDuration())

	healthManager := database.NewHealthManager(logger)
	healthManager.AddChecker(database.NewDatabaseHealthChecker(db))

	return &server.AppState{
		Logger:        logger,
		UserService:   service,
		HealthManager: healthManager,
		Options: server.Options{
			CorsMode:        config.Cors().Mode,
			AllowedOrigins:  config.Cors().AllowedOrigins,
			RequestTimeout:  config.Http().RequestTimeoutDuration(),
			MaxRequestSize:  config.Http().MaxRequestSize,
			DefaultPageSize: config.Pagination().DefaultPageSize,
			MaxPageSize:     config.Pagination().MaxPageSize,
		},
	}
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var config zap.Config
	if logConfig.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	switch logConfig.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func setupSignalHandler(srv *http.Server, db *bun.DB, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		if err := db.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}

		done <- struct{}{}
	}()

	return done
}
