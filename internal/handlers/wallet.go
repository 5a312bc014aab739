package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/handlers/render"
	"github.com/emeka-o/billvault/internal/handlers/userctx"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
)

type transactionResponse struct {
	Reference   string            `json:"reference"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	Fee         decimal.Decimal   `json:"fee"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Balance     decimal.Decimal   `json:"balance_after"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		Reference:   t.Reference,
		Type:        t.Type,
		Status:      t.Status,
		Amount:      t.Amount,
		Fee:         t.Fee,
		TotalAmount: t.TotalAmount,
		Balance:     t.BalanceAfter,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
}

func handleWalletBalance(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		Currency      string          `json:"currency"`
		Balance       decimal.Decimal `json:"balance"`
		LedgerBalance decimal.Decimal `json:"ledger_balance"`
		IsLocked      bool            `json:"is_locked"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.GetWallet(r.Context(), user.ID)
		switch {
		case err == nil:
			render.JSON(w, response{
				Currency:      wallet.Currency,
				Balance:       wallet.Balance,
				LedgerBalance: wallet.LedgerBalance,
				IsLocked:      wallet.IsLocked,
			})
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to get wallet", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeposit(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount    decimal.Decimal `json:"amount" validate:"required,dgt0"`
		Reference string          `json:"reference"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		tx, err := walletService.Deposit(r.Context(), user.ID, data.Amount, data.Reference)
		switch {
		case err == nil:
			render.JSON(w, newTransactionResponse(tx))
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrReferenceExists):
			render.ServiceError(w, "Reference already used", http.StatusConflict)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to deposit", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleWithdraw(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount    decimal.Decimal `json:"amount" validate:"required,dgt0"`
		Reference string          `json:"reference"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		tx, err := walletService.Withdraw(r.Context(), user.ID, data.Amount, data.Reference)
		switch {
		case err == nil:
			render.JSON(w, newTransactionResponse(tx))
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrReferenceExists):
			render.ServiceError(w, "Reference already used", http.StatusConflict)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to withdraw", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleStatement(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		limit, offset := pagination(r)

		transactions, err := walletService.Statement(r.Context(), user.ID, limit, offset)
		if err != nil {
			l.Error("Failed to list transactions", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]transactionResponse, 0, len(transactions))
		for _, t := range transactions {
			response = append(response, newTransactionResponse(t))
		}
		render.JSON(w, response)
	})
}

// pagination reads limit and offset query params with sane bounds
func pagination(r *http.Request) (limit int, offset int) {
	limit = 50
	offset = 0

	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
