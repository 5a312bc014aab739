package reconciler

import (
	"context"
	"time"

	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
)

type producer struct {
	interval  time.Duration
	batchSize int
	storage   repository.Storage
	logger    logger.Logger
}

func (p *producer) produce(ctx context.Context, out chan<- models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting reconciler producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Reconciler producer stopped by context")
				return

			case <-ticker.C:
				orders, err := p.storage.Order().ListNeedingRecheck(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list orders needing recheck", "error", err)
					continue
				}

				for _, order := range orders {
					select {
					case <-ctx.Done():
						p.logger.Debug("Reconciler producer stopped while sending orders")
						return
					case out <- order:
					}
				}
			}
		}
	}()

	return idleStopped
}
