package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/handlers/middleware"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/service/purchase"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	walletService walletService,
	purchaseService purchaseService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(authService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, logger))
	api.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))

	api.Handle("GET /wallet", withAuth(handleWalletBalance(walletService, logger)))
	api.Handle("POST /wallet/deposit", withAuth(handleDeposit(walletService, logger)))
	api.Handle("POST /wallet/withdraw", withAuth(handleWithdraw(walletService, logger)))
	api.Handle("GET /wallet/transactions", withAuth(handleStatement(walletService, logger)))

	api.Handle("POST /purchases/{service}", withAuth(handlePurchase(purchaseService, logger)))
	api.Handle("GET /orders", withAuth(handleListOrders(purchaseService, logger)))
	api.Handle("GET /orders/{id}", withAuth(handleGetOrder(purchaseService, logger)))
	api.Handle("GET /recipients", withAuth(handleListRecipients(purchaseService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with username and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Authenticate request by its bearer token
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type walletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Transaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Transaction, error)
	Statement(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Transaction, error)
}

type purchaseService interface {
	Purchase(ctx context.Context, req purchase.Request) (purchase.Result, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Order, error)
	ListRecipients(ctx context.Context, userID uuid.UUID, serviceType string) ([]models.SavedRecipient, error)
}
