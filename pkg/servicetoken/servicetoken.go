/**
 * @description
 * Short-lived HS256 tokens for service-to-service calls inside the ATS
 * deployment. Tokens are signed with the shared INTERNAL_API_KEY.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: token signing and validation.
 */
package servicetoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is the iss claim of every service token.
	Issuer = "ats-transfer-service"

	defaultTTL = 5 * time.Minute
)

var (
	ErrMissingKey   = errors.New("internal api key is not configured")
	ErrInvalidToken = errors.New("invalid service token")
)

// Issue signs a token for audience that expires after ttl.
func Issue(key, audience string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrMissingKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   Issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry of tokenString.
func Verify(key, audience, tokenString string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	token, err := parser.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(key), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
