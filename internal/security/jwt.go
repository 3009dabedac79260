package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "formvault"

// errNoSecret is returned by a manager built with an empty key
var errNoSecret = errors.New("no signing secret configured")

// Claims represents JWT claims. Tenant is the isolation boundary every
// request is scoped to; Admin grants the tenant registry endpoints.
type Claims struct {
	Tenant domain.TenantID `json:"tenant"`
	Admin  bool            `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token operations
type JWTManager struct {
	secret         []byte
	accessTokenTTL time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:         []byte(secret),
		accessTokenTTL: accessTTL,
	}
}

// GenerateAccessToken generates a new access token for subject acting on
// behalf of tenant
func (m *JWTManager) GenerateAccessToken(subject string, tenant domain.TenantID, admin bool) (string, error) {
	if len(m.secret) == 0 {
		return "", errNoSecret
	}
	if tenant == "" {
		return "", errors.New("tenant is required")
	}

	now := time.Now()
	claims := Claims{
		Tenant: tenant,
		Admin:  admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateAccessToken validates an access token and returns the claims
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Tenant == "" {
		return nil, errors.New("token carries no tenant")
	}

	return claims, nil
}

// AccessTokenTTL returns the access token TTL
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.accessTokenTTL
}
