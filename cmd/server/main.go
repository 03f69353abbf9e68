// Package main starts the GophShop sandbox HTTPS server: the storefront
// backend the client talks to in development and tests.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"time"

	nethttp "net/http"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/db"
	"github.com/atinyakov/GophShop/internal/logger"
	"github.com/atinyakov/GophShop/internal/repository"
	"github.com/atinyakov/GophShop/internal/server/handler/http"
	"github.com/atinyakov/GophShop/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 15 * time.Second

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db.StartOTPCleaner(ctx, postgresDB, time.Minute, zapLogger.Named("otp-cleaner"))

	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	catalogRepo := repository.NewPostgresCatalogRepository(postgresDB)
	cartRepo := repository.NewPostgresCartRepository(postgresDB)
	orderRepo := repository.NewPostgresOrderRepository(postgresDB)

	tokens := service.NewTokenManager(options.JWTSecret, service.SessionLifetime)
	shopCfg := service.DefaultShopConfig()
	shopCfg.UploadDir = options.UploadDir
	shopCfg.PaymentURL = options.PaymentURL

	authService := service.NewAuthService(authRepo, tokens, options.AdminEmail, zapLogger.Named("auth"))
	shopService := service.NewShopService(catalogRepo, cartRepo, orderRepo, shopCfg, zapLogger.Named("shop"))

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	shopHandler := &http.ShopHandler{Shop: shopService, Log: zapLogger}

	router := http.NewRouter(authHandler, shopHandler, tokens, options.UploadDir, zapLogger)

	cert, err := tls.LoadX509KeyPair(options.CertFile, options.KeyFile)
	if err != nil {
		zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
	}

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"https-server": func(ctx context.Context) error {
				zapLogger.Info("shutting down HTTPS server")
				return server.Shutdown(ctx)
			},
			"otp-cleaner": func(context.Context) error {
				cancel()
				return nil
			},
		},
	)

	exitCode := <-wait
	if err := postgresDB.Close(); err != nil {
		zapLogger.Error("failed to close database", zap.Error(err))
	}
	zapLogger.Info("sandbox exited", zap.Int("code", exitCode))
	_ = zapLogger.Sync()
	os.Exit(exitCode)
}
