package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 24 * time.Hour

// Identity is what a verified token resolves to
type Identity struct {
	PrincipalID string
	Role        domain.Role
}

type Claims struct {
	PrincipalID string      `json:"principal_id"`
	Role        domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens. The secret is fixed
// for the life of the process.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "bloodlink"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL reports the lifetime given to issued tokens
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for principalID acting as role
func (tm *TokenManager) Issue(principalID string, role domain.Role) (string, time.Time, error) {
	if principalID == "" {
		return "", time.Time{}, fmt.Errorf("principal id required")
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return "", time.Time{}, err
	}
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := Claims{
		PrincipalID: principalID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the identity in tokenString or an error wrapping
// domain.ErrAuthentication. There is no partial success.
func (tm *TokenManager) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", domain.ErrAuthentication, describeParseError(err))
	}
	if !token.Valid || claims.PrincipalID == "" {
		return Identity{}, fmt.Errorf("%w: invalid token claims", domain.ErrAuthentication)
	}
	role, err := domain.ParseRole(string(claims.Role))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	return Identity{PrincipalID: claims.PrincipalID, Role: role}, nil
}

func describeParseError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

// ExtractToken pulls the token out of an "Authorization: Bearer <token>" header
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization header", domain.ErrAuthentication)
	}
	return parts[1], nil
}
