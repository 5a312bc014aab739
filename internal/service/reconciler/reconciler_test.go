package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/repository/postgres"
	"github.com/emeka-o/billvault/internal/service/provider"
	"github.com/emeka-o/billvault/internal/testutil"
)

type fakeStatusGateway struct {
	outcome provider.Outcome
	err     error
	queried []string
}

func (g *fakeStatusGateway) QueryStatus(ctx context.Context, reference string) (provider.Outcome, error) {
	g.queried = append(g.queried, reference)
	return g.outcome, g.err
}

func Test_Reconciler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin a rolled-back transaction holding one refunded order flagged
	// for recheck: debit, failed settlement, compensating refund. The
	// wallet is back at 10000 when fn runs.
	withRefundedOrder := func(t *testing.T, fn func(st repository.Storage, order models.Order)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			user, err := storage.User().CreateUser(t.Context(), "yemi", "hashed-pwd")
			require.NoError(t, err)
			w, err := storage.Wallet().CreateWallet(t.Context(), user.ID, models.DefaultCurrency)
			require.NoError(t, err)

			seed := decimal.NewFromInt(10000)
			_, err = storage.Wallet().Credit(t.Context(), w.ID, models.Transaction{
				Reference:   "SEED-" + uuid.NewString(),
				Type:        models.TransactionTypeDeposit,
				Amount:      seed,
				TotalAmount: seed,
				Status:      models.TransactionStatusCompleted,
			})
			require.NoError(t, err)

			order, err := storage.Order().CreateOrder(t.Context(), models.Order{
				UserID:      user.ID,
				WalletID:    w.ID,
				Reference:   "BV-RC-1",
				ServiceType: models.ServiceAirtime,
				Provider:    "MTN",
				Recipient:   "08031234567",
				Amount:      decimal.NewFromInt(5000),
				Status:      models.OrderStatusPending,
			})
			require.NoError(t, err)

			_, err = storage.Wallet().Debit(t.Context(), w.ID, models.Transaction{
				Reference:   order.Reference,
				Type:        models.TransactionTypePurchase,
				Amount:      decimal.NewFromInt(5000),
				Fee:         decimal.NewFromInt(100),
				TotalAmount: decimal.NewFromInt(5100),
				Status:      models.TransactionStatusCompleted,
				Metadata:    map[string]string{"order_id": order.ID.String()},
			})
			require.NoError(t, err)

			order, err = storage.Order().SetOutcome(t.Context(), order.ID, models.OrderStatusFailed, "", "", nil)
			require.NoError(t, err)

			_, err = storage.Wallet().Credit(t.Context(), w.ID, models.Transaction{
				Reference:   order.Reference + "-RF",
				Type:        models.TransactionTypeRefund,
				Amount:      decimal.NewFromInt(5000),
				Fee:         decimal.NewFromInt(100),
				TotalAmount: decimal.NewFromInt(5100),
				Status:      models.TransactionStatusCompleted,
				Metadata:    map[string]string{"original_reference": order.Reference},
			})
			require.NoError(t, err)

			require.NoError(t, storage.Order().SetNeedsRecheck(t.Context(), order.ID, true))

			fn(storage, order)
		})
	}

	newConsumer := func(st repository.Storage, gw gateway) *consumer {
		return &consumer{
			countWorkers: 1,
			storage:      st,
			gateway:      gw,
			logger:       logger.NewNoOpLogger(),
		}
	}

	walletBalance := func(t *testing.T, st repository.Storage, walletID uuid.UUID) decimal.Decimal {
		t.Helper()
		w, err := st.Wallet().GetWallet(t.Context(), walletID)
		require.NoError(t, err)
		return w.Balance
	}

	t.Run("late delivery re-applies the charge as an adjustment", func(t *testing.T) {
		withRefundedOrder(t, func(st repository.Storage, order models.Order) {
			gw := &fakeStatusGateway{outcome: provider.Outcome{
				Status:      provider.StatusDelivered,
				ProviderRef: "GW-LATE-1",
			}}

			newConsumer(st, gw).reconcile(t.Context(), order)

			require.Equal(t, []string{order.Reference}, gw.queried)
			require.True(t, walletBalance(t, st, order.WalletID).Equal(decimal.NewFromInt(4900)),
				"refund plus adjustment should net to the original charge")

			adj, err := st.Transaction().GetByReference(t.Context(), order.Reference+"-ADJ")
			require.NoError(t, err)
			require.Equal(t, models.TransactionTypeAdjustment, adj.Type)
			require.True(t, adj.TotalAmount.Equal(decimal.NewFromInt(5100)))
			require.Equal(t, order.Reference, adj.Metadata["original_reference"])
			require.Equal(t, "GW-LATE-1", adj.Metadata["provider_ref"])

			queued, err := st.Order().ListNeedingRecheck(t.Context(), 10)
			require.NoError(t, err)
			require.Empty(t, queued)
		})
	})

	t.Run("confirmed failure just clears the flag", func(t *testing.T) {
		withRefundedOrder(t, func(st repository.Storage, order models.Order) {
			gw := &fakeStatusGateway{outcome: provider.Outcome{Status: provider.StatusFailed}}

			newConsumer(st, gw).reconcile(t.Context(), order)

			require.True(t, walletBalance(t, st, order.WalletID).Equal(decimal.NewFromInt(10000)),
				"the defensive refund stands")

			_, err := st.Transaction().GetByReference(t.Context(), order.Reference+"-ADJ")
			require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)

			queued, err := st.Order().ListNeedingRecheck(t.Context(), 10)
			require.NoError(t, err)
			require.Empty(t, queued)
		})
	})

	t.Run("still pending keeps the order queued", func(t *testing.T) {
		withRefundedOrder(t, func(st repository.Storage, order models.Order) {
			gw := &fakeStatusGateway{outcome: provider.Outcome{Status: provider.StatusPending}}

			newConsumer(st, gw).reconcile(t.Context(), order)

			queued, err := st.Order().ListNeedingRecheck(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, queued, 1, "next pass should pick the order up again")
		})
	})

	t.Run("query failure keeps the order queued", func(t *testing.T) {
		withRefundedOrder(t, func(st repository.Storage, order models.Order) {
			gw := &fakeStatusGateway{err: errors.New("gateway unreachable")}

			newConsumer(st, gw).reconcile(t.Context(), order)

			require.True(t, walletBalance(t, st, order.WalletID).Equal(decimal.NewFromInt(10000)))

			queued, err := st.Order().ListNeedingRecheck(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, queued, 1)
		})
	})

	t.Run("adjustment is never applied twice", func(t *testing.T) {
		withRefundedOrder(t, func(st repository.Storage, order models.Order) {
			gw := &fakeStatusGateway{outcome: provider.Outcome{Status: provider.StatusDelivered}}
			c := newConsumer(st, gw)

			c.reconcile(t.Context(), order)

			// A racing pass flagged the order again before the first one
			// cleared it.
			require.NoError(t, st.Order().SetNeedsRecheck(t.Context(), order.ID, true))
			c.reconcile(t.Context(), order)

			require.True(t, walletBalance(t, st, order.WalletID).Equal(decimal.NewFromInt(4900)),
				"second pass must hit the reference guard, not debit again")

			queued, err := st.Order().ListNeedingRecheck(t.Context(), 10)
			require.NoError(t, err)
			require.Empty(t, queued)
		})
	})

	t.Run("pipeline drains on context cancel", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		r := New(storage, &fakeStatusGateway{}, logger.NewNoOpLogger())

		ctx, cancel := context.WithCancel(t.Context())
		stopped := r.Run(ctx)

		cancel()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatal("reconciler did not stop after context cancellation")
		}
	})
}
