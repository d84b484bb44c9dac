package auth

import (
	"errors"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "customer-intake"

type sessionClaims struct {
	Role     string   `json:"role"`
	Branches []string `json:"branches,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs sessions as HS256 JWTs so a caller can hold a session
// across process restarts.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer. ttl <= 0 means 12 hours.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs s and returns the token and its expiry.
func (i *TokenIssuer) Issue(s *Session) (string, time.Time, error) {
	if s == nil || s.Username == "" {
		return "", time.Time{}, apperr.New(apperr.InvalidInput, "cannot issue a token without a user")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := sessionClaims{
		Role:     string(s.Role),
		Branches: s.Branches,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.Internal, err, "sign token")
	}
	return tok, exp, nil
}

// Parse validates tokenStr and returns the session it carries. Any failure is
// InvalidCredentials.
func (i *TokenIssuer) Parse(tokenStr string) (*Session, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, apperr.Wrap(apperr.InvalidCredentials, err, "invalid session token")
	}
	c, _ := tok.Claims.(*sessionClaims)
	if c == nil || c.Subject == "" {
		return nil, apperr.New(apperr.InvalidCredentials, "invalid session claims")
	}
	role, ok := models.ParseRole(c.Role)
	if !ok {
		return nil, apperr.New(apperr.InvalidCredentials, "invalid role in session token")
	}
	branches := c.Branches
	if branches == nil {
		branches = []string{}
	}
	return &Session{Username: c.Subject, Role: role, Branches: branches}, nil
}
