// Package auth verifies police bearer tokens and issues new ones at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/models"
)

const bearerPrefix = "Bearer "

// Claims is the signed officer identity carried by a police token.
type Claims struct {
	OfficerID string `json:"id"`
	BadgeID   string `json:"badgeId"`
	Name      string `json:"name"`
	Station   string `json:"station"`
	jwt.RegisteredClaims
}

// Gate issues and verifies HS256 officer tokens.
//
// Tokens are not re-checked against the officer's active flag: a token issued
// before deactivation stays valid until it expires.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewGate creates a gate signing with secret and issuing tokens valid for ttl.
func NewGate(secret string, ttl time.Duration) *Gate {
	return &Gate{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for officer.
func (g *Gate) Issue(officer models.OfficerIdentity) (string, error) {
	now := g.now()
	claims := Claims{
		OfficerID: officer.ID,
		BadgeID:   officer.BadgeID,
		Name:      officer.Name,
		Station:   officer.Station,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   officer.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies an Authorization header value and returns the
// officer it names.
func (g *Gate) Authenticate(header string) (*models.OfficerIdentity, error) {
	if header == "" {
		return nil, &apperr.UnauthorizedError{Reason: "access token required"}
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, &apperr.UnauthorizedError{Reason: "malformed authorization header"}
	}
	return g.Verify(strings.TrimPrefix(header, bearerPrefix))
}

// Verify checks a raw token's signature and expiry.
func (g *Gate) Verify(raw string) (*models.OfficerIdentity, error) {
	if raw == "" {
		return nil, &apperr.UnauthorizedError{Reason: "access token required"}
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &apperr.UnauthorizedError{Reason: "access token expired"}
		}
		return nil, &apperr.UnauthorizedError{Reason: "invalid access token"}
	}
	if claims.BadgeID == "" {
		return nil, &apperr.UnauthorizedError{Reason: "token carries no badge"}
	}

	return &models.OfficerIdentity{
		ID:      claims.OfficerID,
		BadgeID: claims.BadgeID,
		Name:    claims.Name,
		Station: claims.Station,
	}, nil
}

type contextKey struct{}

// WithOfficer attaches an authenticated officer to ctx.
func WithOfficer(ctx context.Context, officer *models.OfficerIdentity) context.Context {
	return context.WithValue(ctx, contextKey{}, officer)
}

// OfficerFrom returns the officer attached by the auth middleware.
func OfficerFrom(ctx context.Context) (*models.OfficerIdentity, bool) {
	officer, ok := ctx.Value(contextKey{}).(*models.OfficerIdentity)
	return officer, ok && officer != nil
}
