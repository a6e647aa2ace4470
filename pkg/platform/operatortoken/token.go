// Package operatortoken issues and verifies the short lived bearer tokens
// operators use on the admin API. Tokens are HS256 JWTs signed with the
// admin secret and name the operator in the actor claim.
package operatortoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "idv/pkg/domain-errors"
)

// DefaultIssuer is the issuer written by rulectl and expected by the server.
const DefaultIssuer = "idv-admin"

// Claims are the operator token claims.
type Claims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// Service signs and validates operator tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs a token for actor valid for ttl from now.
func (s *Service) Issue(actor string, ttl time.Duration, now time.Time) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if ttl <= 0 {
		return "", dErrors.New(dErrors.CodeValidation, "ttl must be positive")
	}
	if len(s.signingKey) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "signing key is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Actor: actor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign operator token")
	}
	return signed, nil
}

// Validate parses tokenString and returns its claims. Every failure is
// CodeUnauthorized.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if len(s.signingKey) == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "operator tokens are disabled")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Actor) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
