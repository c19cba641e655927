package auth

import (
	"errors"
	"fmt"
	"time"

	"chatdesk-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrDecode marks a malformed or unverifiable realtime credential.
// The hub must close the connection attempt on this error before any
// session state is created; it is distinct from later authorization
// failures.
var ErrDecode = errors.New("auth: credential decode failed")

type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		accessTTL: cfg.AccessTokenTTL,
	}, nil
}

// Issue signs an access token for the given identity.
//
// NOTE: Real credential validation happens in the external admin API;
// this issuer exists for the dev token endpoint and tests.
func (m *Manager) Issue(now time.Time, id Identity) (string, error) {
	if id.UserID == "" || id.Role == "" {
		return "", errors.New("auth: user_id and role are required")
	}
	if id.Role == RoleAgent && id.Sector == "" {
		return "", errors.New("auth: agents must carry a sector")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			ID:        uuid.NewString(),
		},
		UserID: id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		Role:   id.Role,
		Sector: id.Sector,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Decode verifies a credential and returns its claims.
// All failures are wrapped in ErrDecode so callers can treat them as a
// single fatal handshake outcome.
func (m *Manager) Decode(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: user_id missing", ErrDecode)
	}
	if !IsKnownRole(claims.Role) {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrDecode, claims.Role)
	}
	if claims.Role == RoleAgent && claims.Sector == "" {
		return Claims{}, fmt.Errorf("%w: sector missing for agent", ErrDecode)
	}

	return claims, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
