package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/extrato-ingest-go/internal/domain"
)

const (
	tokenTypeAccess = "access"
	tokenIssuer     = "extrato-api"
)

// JWTClaims represents the custom claims in access tokens. Tokens are
// issued by the authentication service; this service only verifies them.
type JWTClaims struct {
	Sub  string `json:"sub"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HMAC-signed access tokens and yields the user id.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewTokenVerifier creates a verifier for tokens signed with secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// ValidateAccessToken parses and checks a bearer token.
func (v *TokenVerifier) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Message: "Token expirado"}
		}
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != tokenTypeAccess {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	if claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token sem usuário"}
	}
	return claims, nil
}

// SignAccessToken issues a token the verifier accepts. Used by the CLI to
// mint development tokens and by tests.
func (v *TokenVerifier) SignAccessToken(userID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := JWTClaims{
		Sub:  userID,
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
