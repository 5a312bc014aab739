package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			user, err := repo.CreateUser(t.Context(), "chinwe", "hashed_password")

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, user.ID)
			require.Equal(t, "chinwe", user.Username)
			require.Equal(t, "hashed_password", user.HashedPassword)
		})
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			_, err := repo.CreateUser(t.Context(), "chinwe", "hashed_password")
			require.NoError(t, err)

			_, err = repo.CreateUser(t.Context(), "chinwe", "other_hash")

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get by id and username", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			created, err := repo.CreateUser(t.Context(), "chinwe", "hashed_password")
			require.NoError(t, err)

			byID, err := repo.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.Equal(t, created.ID, byID.ID)

			byName, err := repo.GetUserByUsername(t.Context(), "chinwe")
			require.NoError(t, err)
			require.Equal(t, created.ID, byName.ID)
		})
	})

	t.Run("user not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			_, err := repo.GetUserByID(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)

			_, err = repo.GetUserByUsername(t.Context(), "nobody")
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
