package sandbox

import (
	"crypto/ed25519"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/internal/common/uuid"
)

const (
	tokenAudience = "flowbridge-sandbox"
	tokenUse      = "sandbox_access"
)

var (
	ErrToken              = apperrors.New("sandbox token error")
	ErrTokenGeneration    = ErrToken.New("unable to generate token").SetStatusCode(500)
	ErrInvalidToken       = ErrToken.New("invalid or expired access token").SetStatusCode(401)
	ErrIssuerNotPermitted = ErrToken.New("app issuer is not permitted").SetStatusCode(403)
)

// TokenIssuer mints and validates sandbox access tokens.
type TokenIssuer struct {
	key     ed25519.PrivateKey
	ttl     time.Duration
	issuers []string
	now     func() time.Time
}

func NewTokenIssuer(key ed25519.PrivateKey, ttl time.Duration, issuers []string) *TokenIssuer {
	return &TokenIssuer{key: key, ttl: ttl, issuers: issuers, now: time.Now}
}

// Mint returns a signed access token for appIssuer and its expiry.
func (ti *TokenIssuer) Mint(appIssuer string) (string, time.Time, apperrors.Error) {
	if appIssuer == "" {
		return "", time.Time{}, ErrIssuerNotPermitted.Msg("appIssuer is required")
	}
	if len(ti.issuers) > 0 && !slices.Contains(ti.issuers, appIssuer) {
		return "", time.Time{}, ErrIssuerNotPermitted
	}

	now := ti.now()
	expiry := now.Add(ti.ttl)
	claims := jwt.MapClaims{
		"token_use":  tokenUse,
		"app_issuer": appIssuer,
		"aud":        []string{tokenAudience},
		"exp":        jwt.NewNumericDate(expiry),
		"iat":        jwt.NewNumericDate(now),
		"nbf":        jwt.NewNumericDate(now.Add(-2 * time.Minute)), // 2-minute skew buffer
		"jti":        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(ti.key)
	if err != nil {
		return "", time.Time{}, ErrTokenGeneration.MsgErr("unable to sign token", err)
	}
	return signed, expiry, nil
}

// Validate checks tokenString and returns the app issuer it was minted for.
func (ti *TokenIssuer) Validate(tokenString string) (string, apperrors.Error) {
	if tokenString == "" {
		return "", ErrInvalidToken.Msg("missing access token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.key.Public(), nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", ErrInvalidToken.Err(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if use, _ := claims["token_use"].(string); use != tokenUse {
		return "", ErrInvalidToken.Msg("unexpected token use")
	}
	issuer, _ := claims["app_issuer"].(string)
	if issuer == "" {
		return "", ErrInvalidToken.Msg("token has no app issuer")
	}
	return issuer, nil
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
