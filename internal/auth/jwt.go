package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID      string `json:"userId"`
	Username    string `json:"userName"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type tokenClaims struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenManager(secret, issuer, audience string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a token for user and returns it with its expiry.
func (m *TokenManager) Issue(user *models.User) (string, time.Time, error) {
	// JWT dates have second precision
	issued := m.now().Truncate(time.Second)
	expires := issued.Add(m.ttl)

	claims := tokenClaims{
		Name:        user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing token: %w", err)
	}
	return signed, expires, nil
}

// Parse checks signature, issuer, audience and lifetime with no clock skew.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", shared.ErrUnauthorized)
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", shared.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token: %v", shared.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", shared.ErrUnauthorized)
	}

	return &Claims{
		UserID:      claims.Subject,
		Username:    claims.Name,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	}, nil
}
