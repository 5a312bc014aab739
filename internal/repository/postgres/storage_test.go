package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/testutil"
)

func Test_Storage_InTx(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("commit on success", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			wallet := createFundedWallet(t, tx, 10000)
			storage := NewStorage(tx)

			err := storage.InTx(t.Context(), func(st repository.Storage) error {
				_, err := st.Wallet().Debit(t.Context(), wallet.ID, models.Transaction{
					Reference:   "BV-TX-1",
					Type:        models.TransactionTypePurchase,
					Amount:      decimal.NewFromInt(1000),
					TotalAmount: decimal.NewFromInt(1000),
					Status:      models.TransactionStatusCompleted,
				})
				return err
			})
			require.NoError(t, err)

			got, err := storage.Wallet().GetWallet(t.Context(), wallet.ID)
			require.NoError(t, err)
			require.True(t, got.Balance.Equal(decimal.NewFromInt(9000)))
		})
	})

	t.Run("rollback on error", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			wallet := createFundedWallet(t, tx, 10000)
			storage := NewStorage(tx)

			boom := errors.New("boom")
			err := storage.InTx(t.Context(), func(st repository.Storage) error {
				_, err := st.Wallet().Debit(t.Context(), wallet.ID, models.Transaction{
					Reference:   "BV-TX-2",
					Type:        models.TransactionTypePurchase,
					Amount:      decimal.NewFromInt(1000),
					TotalAmount: decimal.NewFromInt(1000),
					Status:      models.TransactionStatusCompleted,
				})
				require.NoError(t, err)

				return boom
			})
			require.ErrorIs(t, err, boom)

			got, err := storage.Wallet().GetWallet(t.Context(), wallet.ID)
			require.NoError(t, err)
			require.True(t, got.Balance.Equal(decimal.NewFromInt(10000)), "debit inside failed tx must not stick")

			_, err = storage.Transaction().GetByReference(t.Context(), "BV-TX-2")
			require.Error(t, err, "ledger row inside failed tx must not stick")
		})
	})
}
