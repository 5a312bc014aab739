package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/handlers/render"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
)

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Register(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Wrong username or password", http.StatusUnauthorized)
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenIsUsed),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
