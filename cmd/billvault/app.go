package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/cache"
	"github.com/emeka-o/billvault/internal/db"
	"github.com/emeka-o/billvault/internal/handlers"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository/postgres"
	"github.com/emeka-o/billvault/internal/service/auth"
	"github.com/emeka-o/billvault/internal/service/notification"
	"github.com/emeka-o/billvault/internal/service/provider"
	"github.com/emeka-o/billvault/internal/service/purchase"
	"github.com/emeka-o/billvault/internal/service/reconciler"
	"github.com/emeka-o/billvault/internal/service/wallet"
)

type cacheInvalidator interface {
	InvalidateWallet(ctx context.Context, userID uuid.UUID)
	InvalidateTransactions(ctx context.Context, userID uuid.UUID)
}

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	reconciler *reconciler.Reconciler
}

func newLogger(environment string, level string) (logger.Logger, error) {
	if environment == EnvDevelopment {
		return logger.NewTextLogger(level)
	}
	return logger.NewJSONLogger(level)
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	// Cache invalidation is optional, a missing Redis only loses the cache tier
	var invalidator cacheInvalidator = cache.Noop{}
	if c.RedisAddr != "" {
		invalidator = cache.NewInvalidator(c.RedisAddr, "", 0, log)
	}

	// Initialize services
	walletService := wallet.NewService(storage, invalidator, log, models.DefaultCurrency)

	authService, err := auth.NewAuthService(auth.Config{SecretKey: c.SecretKey}, storage, walletService)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	providerClient := provider.NewClient(c.ProviderAddr, c.ProviderTimeout, log)
	dispatcher := notification.NewDispatcher(
		storage.Notification(),
		notification.AllowAllPrefs{},
		notification.LogSenders{Logger: log},
		log,
	)

	purchaseService := purchase.NewService(
		purchase.Config{
			Currency:        models.DefaultCurrency,
			ProviderTimeout: c.ProviderTimeout,
		},
		storage,
		providerClient,
		purchase.NewCatalog(purchase.DefaultProducts()),
		dispatcher,
		invalidator,
		log,
	)

	router := handlers.NewRouter(authService, walletService, purchaseService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     log,
		reconciler: reconciler.New(storage, providerClient, log),
	}, nil
}

// Run starts the http server and the reconciliation pipeline, and closes
// both gracefully on context cancellation.
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	reconcilerStopped := s.reconciler.Run(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reconcilerStopped

	return err
}
