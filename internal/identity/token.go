package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/farmconnect/marketplace/internal/domain"
)

const issuer = "farmconnect"

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() domain.Identity {
	return domain.Identity{UserID: c.UserID, Name: c.Name, Email: c.Email}
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenManager(secret string, ttl time.Duration, clk clock.Clock) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (m *TokenManager) Generate(user *domain.User) (string, error) {
	now := m.clock.Now()
	claims := Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	return claims, nil
}
