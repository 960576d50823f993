package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/api"
	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
)

// RegisterRoutes wires auth routes to the router.
func RegisterRoutes(router chi.Router, store *PairingStore, issuer *TokenIssuer, cfg config.Config, logger zerolog.Logger) {
	logger = logger.With().Str("component", "auth").Logger()

	router.Method(http.MethodPost, "/v1/auth/pair/start", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		store.CleanupExpired()

		pairCode, err := store.Create(api.GetRequestID(r))
		if err != nil {
			return apperrors.NewInternalError("Failed to generate pairing code")
		}

		logger.Info().Str("pair_code", pairCode).Msg("Pairing code generated, enter it on the client")

		return api.WriteAction(w, http.StatusOK, map[string]any{
			"object":       "pairing_start",
			"pairing_hint": "Enter the pairing code printed in the hub log",
		})
	}))

	router.Method(http.MethodPost, "/v1/auth/pair/complete", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			PairCode   string `json:"pair_code"`
			ClientName string `json:"client_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PairCode == "" {
			return apperrors.NewValidationError("pair_code is required", nil)
		}
		if body.ClientName == "" {
			return apperrors.NewValidationError("client_name is required", nil)
		}

		if err := store.Redeem(body.PairCode); err != nil {
			if errors.Is(err, ErrPairingExpired) {
				return apperrors.NewUnauthorizedError("Pairing code has expired")
			}
			return apperrors.NewUnauthorizedError("Invalid or expired pairing code")
		}

		client := Client{ID: uuid.NewString(), Name: body.ClientName, Origin: OriginPairing}
		logger.Info().Str("client_id", client.ID).Str("client", client.Name).Msg("Client paired")
		return writeTokenPair(w, issuer, client)
	}))

	router.Method(http.MethodPost, "/v1/auth/refresh", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
			return apperrors.NewValidationError("refresh_token is required", nil)
		}

		accessToken, expiresIn, err := issuer.Refresh(body.RefreshToken)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				return apperrors.NewUnauthorizedError("Refresh token has expired", apperrors.ErrorCodeAuthTokenExpired)
			case errors.Is(err, ErrTokenType):
				return apperrors.NewUnauthorizedError("Invalid token: expected refresh token", apperrors.ErrorCodeAuthTokenInvalid)
			default:
				return apperrors.NewUnauthorizedError("Invalid refresh token", apperrors.ErrorCodeAuthTokenInvalid)
			}
		}

		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":         "token_refresh",
			"access_token":   accessToken,
			"expires_in_sec": expiresIn,
		})
	}))

	// Issues tokens without pairing, for local development only.
	router.Method(http.MethodPost, "/v1/auth/token", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if !testModeEnabled(cfg) {
			return apperrors.NewAppError(apperrors.ErrorCodeTestModeUnavailable, "Test mode is disabled", http.StatusForbidden, nil)
		}
		var body struct {
			ClientName string `json:"client_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("invalid request body", nil)
		}
		if body.ClientName == "" {
			body.ClientName = "Test Client"
		}
		client := Client{ID: uuid.NewString(), Name: body.ClientName, Origin: OriginTestMode}
		logger.Warn().Str("client_id", client.ID).Str("client", client.Name).Msg("Issuing test mode token")
		return writeTokenPair(w, issuer, client)
	}))
}

func writeTokenPair(w http.ResponseWriter, issuer *TokenIssuer, client Client) error {
	tokens, err := issuer.Issue(client)
	if err != nil {
		return apperrors.NewInternalError("Failed to generate token pair")
	}

	return api.WriteResource(w, http.StatusOK, map[string]any{
		"object":         "token_pair",
		"access_token":   tokens.AccessToken,
		"refresh_token":  tokens.RefreshToken,
		"expires_in_sec": tokens.ExpiresInSec,
		"client": map[string]any{
			"id":     client.ID,
			"name":   client.Name,
			"origin": string(client.Origin),
		},
	})
}
