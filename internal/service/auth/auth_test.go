package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/repository/postgres"
	"github.com/emeka-o/billvault/internal/service/wallet"
	"github.com/emeka-o/billvault/internal/testutil"
)

type noopCache struct{}

func (noopCache) InvalidateWallet(ctx context.Context, userID uuid.UUID)       {}
func (noopCache) InvalidateTransactions(ctx context.Context, userID uuid.UUID) {}

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create new AuthService
	// Rollback transaction when test stops
	withTx := func(dbpool *pgxpool.Pool, t *testing.T, fn func(s *AuthService, st repository.Storage)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			wallets := wallet.NewService(storage, noopCache{}, logger.NewNoOpLogger(), models.DefaultCurrency)

			s, err := NewAuthService(Config{SecretKey: "test-secret-key"}, storage, wallets)
			require.NoError(t, err, "auth service should be created without errors")

			fn(s, storage)
		})
	}

	t.Run("new auth service defaults", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		wallets := wallet.NewService(storage, noopCache{}, logger.NewNoOpLogger(), models.DefaultCurrency)

		s, err := NewAuthService(Config{SecretKey: "key"}, storage, wallets)
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, BcryptHasher{}, s.hasher, "default hasher should be set to BcryptHasher")
		require.Equal(t, defaultAccessTTL, s.token.accessTTL, "default access TTL should be set")
		require.Equal(t, defaultRefreshTTL, s.token.refreshTTL, "default refresh TTL should be set")
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				pair, err := s.Register(t.Context(), "chinwe", "pwd")

				require.NoError(t, err, "registering new user should be ok")
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			})
		})

		t.Run("wallet created with user", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				_, err := s.Register(t.Context(), "chinwe", "pwd")
				require.NoError(t, err)

				user, err := st.User().GetUserByUsername(t.Context(), "chinwe")
				require.NoError(t, err)

				w, err := st.Wallet().GetWalletByUserID(t.Context(), user.ID, models.DefaultCurrency)
				require.NoError(t, err, "registration should provision the wallet")
				require.True(t, w.Balance.IsZero(), "new wallet should start at zero")
			})
		})

		t.Run("fail if user exists", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				_, err := s.Register(t.Context(), "chinwe", "pwd")
				require.NoError(t, err, "no error should happen if user not exists")

				_, err = s.Register(t.Context(), "chinwe", "other-pwd")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing user ok", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				_, err := s.Register(t.Context(), "chinwe", "pwd")
				require.NoError(t, err)

				pair, err := s.Login(t.Context(), "chinwe", "pwd")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			})
		})

		tests := []struct {
			name        string
			login       string
			password    string
			expectedErr error
		}{
			{
				name:        "login fail if wrong password",
				login:       "chinwe",
				password:    "wrong",
				expectedErr: apperrors.ErrUserNotFound,
			},
			{
				name:        "login fail if user not exists",
				login:       "not-existed-user",
				password:    "password",
				expectedErr: apperrors.ErrUserNotFound,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
					_, err := s.Register(t.Context(), "chinwe", "pwd")
					require.NoError(t, err)

					_, err = s.Login(t.Context(), tt.login, tt.password)

					require.Error(t, err)
					require.ErrorIs(t, err, tt.expectedErr)
				})
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("rotates token pair", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				pair, err := s.Register(t.Context(), "chinwe", "pwd")
				require.NoError(t, err)

				rotated, err := s.Refresh(t.Context(), pair.Refresh.Value)

				require.NoError(t, err)
				require.NotEmpty(t, rotated.Access.Value)
				require.NotEqual(t, pair.Refresh.Value, rotated.Refresh.Value, "refresh token should rotate")
			})
		})

		t.Run("used token rejected", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				pair, err := s.Register(t.Context(), "chinwe", "pwd")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)
			})
		})

		t.Run("unknown token rejected", func(t *testing.T) {
			withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
				_, err := s.Refresh(t.Context(), "no-such-token")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})
	})

	t.Run("ParseAccess", func(t *testing.T) {
		withTx(pg.Pool, t, func(s *AuthService, st repository.Storage) {
			pair, err := s.Register(t.Context(), "chinwe", "pwd")
			require.NoError(t, err)

			user, err := st.User().GetUserByUsername(t.Context(), "chinwe")
			require.NoError(t, err)

			userID, err := s.ParseAccess(t.Context(), pair.Access.Value)
			require.NoError(t, err)
			require.Equal(t, user.ID, userID, "access token should carry the user id")

			_, err = s.ParseAccess(t.Context(), pair.Access.Value+"tampered")
			require.Error(t, err, "tampered token should be rejected")
		})
	})

	t.Run("expired refresh token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			wallets := wallet.NewService(storage, noopCache{}, logger.NewNoOpLogger(), models.DefaultCurrency)

			s, err := NewAuthService(Config{
				SecretKey:       "test-secret-key",
				RefreshTokenTTL: -time.Hour,
			}, storage, wallets)
			require.NoError(t, err)

			pair, err := s.Register(t.Context(), "chinwe", "pwd")
			require.NoError(t, err)

			_, err = s.Refresh(t.Context(), pair.Refresh.Value)

			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)
		})
	})
}
