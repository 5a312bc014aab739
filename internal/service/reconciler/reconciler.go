// Package reconciler requeries the provider for orders that were refunded
// on an indeterminate outcome. A purchase the provider actually delivered
// after our defensive refund is re-settled with a compensating adjustment
// entry, never silently dropped.
package reconciler

import (
	"context"
	"time"

	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/service/provider"
)

const (
	defaultCountWorkers = 4
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 50
)

type gateway interface {
	QueryStatus(ctx context.Context, reference string) (provider.Outcome, error)
}

type Reconciler struct {
	consumer *consumer
	producer *producer
}

func New(storage repository.Storage, gw gateway, l logger.Logger) *Reconciler {
	return &Reconciler{
		consumer: &consumer{
			countWorkers: defaultCountWorkers,
			storage:      storage,
			gateway:      gw,
			logger:       l,
		},
		producer: &producer{
			interval:  defaultPollInterval,
			batchSize: defaultBatchSize,
			storage:   storage,
			logger:    l,
		},
	}
}

// Run starts the poll/requery pipeline and returns a channel closed when
// both halves have drained after ctx cancellation.
func (r *Reconciler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	orderChan := make(chan models.Order)

	producerStopped := r.producer.produce(ctx, orderChan)
	consumerStopped := r.consumer.consume(ctx, orderChan)

	go func() {
		defer close(idleStopped)
		defer close(orderChan)
		<-producerStopped
		<-consumerStopped
		r.consumer.logger.Debug("Reconciler stopped")
	}()

	return idleStopped
}
