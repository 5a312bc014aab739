// Package cache is the invalidation hook for the read-through caches kept
// in Redis by the API layer. The engine only deletes keys after a balance
// mutation; it never reads through them itself, and a Redis hiccup is
// logged, not propagated.
package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/emeka-o/billvault/internal/logger"
)

const (
	walletKeyPrefix       = "wallet:"
	transactionsKeySuffix = ":transactions"
)

type Invalidator struct {
	client *redis.Client
	logger logger.Logger
}

func NewInvalidator(addr string, password string, db int, l logger.Logger) *Invalidator {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Invalidator{client: client, logger: l}
}

func (i *Invalidator) InvalidateWallet(ctx context.Context, userID uuid.UUID) {
	key := walletKeyPrefix + userID.String()
	if err := i.client.Del(ctx, key).Err(); err != nil {
		i.logger.Warn("Failed to invalidate wallet cache", "key", key, "error", err)
	}
}

func (i *Invalidator) InvalidateTransactions(ctx context.Context, userID uuid.UUID) {
	key := walletKeyPrefix + userID.String() + transactionsKeySuffix
	if err := i.client.Del(ctx, key).Err(); err != nil {
		i.logger.Warn("Failed to invalidate transaction cache", "key", key, "error", err)
	}
}

func (i *Invalidator) Close() error {
	return i.client.Close()
}

// Noop satisfies the invalidator interfaces when Redis is not configured,
// e.g. in tests or single-node deployments without a cache tier.
type Noop struct{}

func (Noop) InvalidateWallet(ctx context.Context, userID uuid.UUID)       {}
func (Noop) InvalidateTransactions(ctx context.Context, userID uuid.UUID) {}
