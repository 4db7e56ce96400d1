package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	internalhttp "github.com/rdm-project/rdm-server/internal/api/http"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/db"
	"github.com/rdm-project/rdm-server/internal/devices"
	"github.com/rdm-project/rdm-server/internal/gateway"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/sessions"
	"github.com/rdm-project/rdm-server/internal/store"
	"github.com/rdm-project/rdm-server/internal/users"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("RDM Server", "version", AppVersion)

	if err := db.RunMigrations(config.Database.Url, config.Database.Schema); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.InitDB(ctx, config.Database.Url, config.Database.Schema)
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cipher, err := secrets.NewCipher(config.Secrets.Key)
	if err != nil {
		slog.Error("Secrets cipher init failed", "error", err)
		os.Exit(1)
	}

	st := store.New(pool)
	recorder := audit.NewRecorder(st, config.Audit.QueueSize)
	defer recorder.Close()

	gatewayClient := gateway.NewPostgresClient(pool, config.Gateway.BaseURL)
	synchronizer := gateway.NewSynchronizer(gatewayClient, cipher, config.Gateway.ServiceAccount)
	resolver := permissions.NewResolver(st)

	authService := auth.NewService(st, recorder, config.Auth)
	userService := users.NewService(st, recorder)
	deviceService := devices.NewService(st, synchronizer, cipher, resolver, recorder)
	permissionService := permissions.NewService(st, recorder)
	broker := sessions.NewBroker(st, resolver, synchronizer, recorder)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.Gateway.SyncInterval, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		deviceService.RepairGatewayDrift(sweepCtx)
	}); err != nil {
		slog.Error("Invalid gateway sync interval", "interval", config.Gateway.SyncInterval, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	services := &internalhttp.Services{
		Store:       st,
		Auth:        authService,
		Users:       userService,
		Devices:     deviceService,
		Permissions: permissionService,
		Broker:      broker,
		JWTSecret:   config.Auth.Secret,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
