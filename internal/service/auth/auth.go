package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Provisions the user's wallet inside the registration transaction
type walletCreator interface {
	CreateForUser(ctx context.Context, st repository.Storage, userID uuid.UUID) (models.Wallet, error)
}

type Config struct {
	// Secret key to sign user access token payload
	SecretKey string

	// Hasher to use during registration or login. Defaults to BcryptHasher.
	Hasher PasswordHasher

	// Access and refresh token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Auth service
type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	token TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	storage repository.Storage

	// Creates the wallet together with the user
	wallets walletCreator
}

func NewAuthService(cfg Config, storage repository.Storage, wallets walletCreator) (*AuthService, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if wallets == nil {
		return nil, errors.New("wallet creator must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL == 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTTL
	}

	tokenManager := TokenManager{
		key:         cfg.SecretKey,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		refreshRepo: storage.Refresh(),
	}

	return &AuthService{
		token:   tokenManager,
		hasher:  hasher,
		storage: storage,
		wallets: wallets,
	}, nil
}

// Register creates the user and their wallet in one transaction.
// A user record never exists without a wallet row.
func (s *AuthService) Register(ctx context.Context, username string, password string) (models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	var user models.User
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		user, err = st.User().CreateUser(ctx, username, hash)
		if err != nil {
			return err
		}

		_, err = s.wallets.CreateForUser(ctx, st, user.ID)
		return err
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated: %w", err)
	}

	return pair, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		// Run the hasher anyway so missing users take as long as wrong passwords
		_ = s.hasher.Compare("$2a$10$invalidsaltinvalidsaltinvalidsaltinvalidsaltinvalidsa", password)
		return models.TokenPair{}, apperrors.ErrUserNotFound
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrUserNotFound
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated: %w", err)
	}

	return pair, nil
}

// Refresh rotates the refresh token. The old token is marked used and a
// fresh pair issued for its owner.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.token.UseRefreshToken(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated: %w", err)
	}

	return pair, nil
}

// ParseAccess validates the access token and returns the user id it carries.
func (s *AuthService) ParseAccess(ctx context.Context, access string) (uuid.UUID, error) {
	return s.token.ParseAccess(ctx, access)
}

// Auth authenticates the request by its bearer token.
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get("Authorization")
	access, found := strings.CutPrefix(header, "Bearer ")
	if !found || access == "" {
		return models.User{}, apperrors.ErrUserNotFound
	}

	userID, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}

	return s.storage.User().GetUserByID(ctx, userID)
}
