package purchase

import (
	"context"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/models"
)

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	return s.storage.Order().GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Order, error) {
	return s.storage.Order().ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListRecipients(ctx context.Context, userID uuid.UUID, serviceType string) ([]models.SavedRecipient, error) {
	return s.storage.Recipient().ListRecipients(ctx, userID, serviceType)
}
