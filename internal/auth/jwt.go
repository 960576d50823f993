package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strefethen/soundtouch-hub-go/internal/config"
)

const (
	tokenIssuer   = "soundtouch-hub"
	tokenAudience = "soundtouch-hub-client"
)

// TokenType describes access vs refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Origin records how a client was admitted to the hub.
type Origin string

const (
	OriginPairing  Origin = "pairing"
	OriginTestMode Origin = "test_mode"
)

// TokenPair is returned for pairing and refresh flows.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresInSec int
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenType    = errors.New("token has invalid type")
)

// clientClaims carry the paired client identity. Refreshing keeps the
// identity and the original pairing time.
type clientClaims struct {
	ClientName string           `json:"cnm"`
	Origin     Origin           `json:"org"`
	PairedAt   *jwt.NumericDate `json:"pat"`
	Type       TokenType        `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies client tokens with the hub secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer reads the secret and token lifetimes from cfg.
func NewTokenIssuer(cfg config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTAccessTokenExpirySec) * time.Second,
		refreshTTL: time.Duration(cfg.JWTRefreshTokenExpirySec) * time.Second,
		now:        time.Now,
	}
}

// Issue creates an access and refresh token for client. A zero PairedAt is
// stamped with the current time.
func (i *TokenIssuer) Issue(client Client) (TokenPair, error) {
	if client.PairedAt.IsZero() {
		client.PairedAt = i.now()
	}
	accessToken, err := i.sign(client, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := i.sign(client, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresInSec: int(i.accessTTL / time.Second),
	}, nil
}

// Refresh validates a refresh token and returns a new access token for the
// same client.
func (i *TokenIssuer) Refresh(refreshToken string) (string, int, error) {
	client, err := i.Verify(refreshToken)
	if err != nil {
		return "", 0, err
	}
	if client.Type != TokenTypeRefresh {
		return "", 0, ErrTokenType
	}
	accessToken, err := i.sign(client, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return accessToken, int(i.accessTTL / time.Second), nil
}

// Verify parses a token and returns the client it was issued to.
func (i *TokenIssuer) Verify(token string) (Client, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(i.now),
	)

	claims := &clientClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Client{}, ErrTokenExpired
		}
		return Client{}, ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid {
		return Client{}, ErrTokenInvalid
	}

	client := Client{
		ID:     claims.Subject,
		Name:   claims.ClientName,
		Origin: claims.Origin,
		Type:   claims.Type,
	}
	if claims.PairedAt != nil {
		client.PairedAt = claims.PairedAt.Time
	}
	if client.ID == "" || client.Name == "" || client.PairedAt.IsZero() {
		return Client{}, ErrTokenInvalid
	}
	if client.Origin != OriginPairing && client.Origin != OriginTestMode {
		return Client{}, ErrTokenInvalid
	}
	if client.Type != TokenTypeAccess && client.Type != TokenTypeRefresh {
		return Client{}, ErrTokenInvalid
	}
	return client, nil
}

func (i *TokenIssuer) sign(client Client, tokenType TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := clientClaims{
		ClientName: client.Name,
		Origin:     client.Origin,
		PairedAt:   jwt.NewNumericDate(client.PairedAt),
		Type:       tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.ID,
			Issuer:    tokenIssuer,
			Audience:  []string{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}
