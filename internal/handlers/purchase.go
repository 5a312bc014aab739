package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/handlers/render"
	"github.com/emeka-o/billvault/internal/handlers/userctx"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/service/purchase"
)

// URL path segment to service type
var serviceTypes = map[string]string{
	"airtime":       models.ServiceAirtime,
	"data":          models.ServiceData,
	"cable":         models.ServiceCableTV,
	"electricity":   models.ServiceElectricity,
	"international": models.ServiceInternational,
}

type purchaseResponse struct {
	Reference     string          `json:"reference"`
	OrderID       uuid.UUID       `json:"order_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ProviderToken string          `json:"provider_token,omitempty"`
	Message       string          `json:"message,omitempty"`
}

type orderResponse struct {
	ID           uuid.UUID       `json:"id"`
	Reference    string          `json:"reference"`
	ServiceType  string          `json:"service_type"`
	Provider     string          `json:"provider,omitempty"`
	Recipient    string          `json:"recipient"`
	ProductCode  string          `json:"product_code,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	ProviderRef  string          `json:"provider_ref,omitempty"`
	NeedsRecheck bool            `json:"needs_recheck,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newOrderResponse(o models.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		Reference:    o.Reference,
		ServiceType:  o.ServiceType,
		Provider:     o.Provider,
		Recipient:    o.Recipient,
		ProductCode:  o.ProductCode,
		Amount:       o.Amount,
		Status:       o.Status,
		ProviderRef:  o.ProviderRef,
		NeedsRecheck: o.NeedsRecheck,
		CreatedAt:    o.CreatedAt,
	}
}

func handlePurchase(purchaseService purchaseService, l logger.Logger) http.Handler {
	type request struct {
		Recipient   string          `json:"recipient" validate:"required"`
		Provider    string          `json:"provider"`
		ProductCode string          `json:"product_code"`
		Amount      decimal.Decimal `json:"amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		serviceType, ok := serviceTypes[r.PathValue("service")]
		if !ok {
			render.ServiceError(w, "Unknown service", http.StatusNotFound)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := purchaseService.Purchase(r.Context(), purchase.Request{
			UserID:      user.ID,
			ServiceType: serviceType,
			Provider:    data.Provider,
			Recipient:   data.Recipient,
			ProductCode: data.ProductCode,
			Amount:      data.Amount,
		})

		response := purchaseResponse{
			Reference:     result.Reference,
			OrderID:       result.OrderID,
			Status:        result.Status,
			Amount:        result.Amount,
			Fee:           result.Fee,
			TotalAmount:   result.TotalAmount,
			ProviderToken: result.ProviderToken,
			Message:       result.Message,
		}

		switch {
		case err == nil:
			render.JSON(w, response)
		case errors.Is(err, apperrors.ErrInvalidRecipient):
			render.ServiceError(w, "Invalid recipient for this service", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInvalidProduct):
			render.ServiceError(w, "Unknown product or invalid amount", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrWalletLocked):
			render.ServiceError(w, "Another purchase is in progress", http.StatusConflict)
		case errors.Is(err, apperrors.ErrDuplicateOrder):
			render.ServiceError(w, "Looks like a duplicate purchase, retry later", http.StatusConflict)
		case errors.Is(err, apperrors.ErrProviderUnavailable):
			// Order failed but the wallet was made whole, report the order state
			render.JSONWithStatus(w, response, http.StatusBadGateway)
		default:
			l.Error("Purchase failed", "error", err, "user_id", user.ID, "service_type", serviceType)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListOrders(purchaseService purchaseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		limit, offset := pagination(r)

		orders, err := purchaseService.ListOrders(r.Context(), user.ID, limit, offset)
		if err != nil {
			l.Error("Failed to list orders", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			response = append(response, newOrderResponse(o))
		}
		render.JSON(w, response)
	})
}

func handleGetOrder(purchaseService purchaseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		orderID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Order not found", http.StatusNotFound)
			return
		}

		order, err := purchaseService.GetOrder(r.Context(), orderID)
		switch {
		case err == nil && order.UserID != user.ID:
			// Do not leak other users' orders
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		case err == nil:
			render.JSON(w, newOrderResponse(order))
		case errors.Is(err, apperrors.ErrOrderNotFound):
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		default:
			l.Error("Failed to get order", "error", err, "order_id", orderID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListRecipients(purchaseService purchaseService, l logger.Logger) http.Handler {
	type recipientResponse struct {
		ServiceType string    `json:"service_type"`
		Recipient   string    `json:"recipient"`
		LastUsedAt  time.Time `json:"last_used_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		serviceType := ""
		if v := r.URL.Query().Get("service_type"); v != "" {
			st, known := serviceTypes[v]
			if !known {
				render.ServiceError(w, "Unknown service", http.StatusBadRequest)
				return
			}
			serviceType = st
		}

		recipients, err := purchaseService.ListRecipients(r.Context(), user.ID, serviceType)
		if err != nil {
			l.Error("Failed to list recipients", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]recipientResponse, 0, len(recipients))
		for _, rec := range recipients {
			response = append(response, recipientResponse{
				ServiceType: rec.ServiceType,
				Recipient:   rec.Recipient,
				LastUsedAt:  rec.LastUsedAt,
			})
		}
		render.JSON(w, response)
	})
}
