package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const issuer = "cineshelf"

// Claims represents JWT token claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens signs and validates session tokens with a single HMAC secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	// rememberTTL is used when the user asks to stay signed in
	rememberTTL time.Duration
	now         func() time.Time
}

// NewTokens creates a token service. An empty secret generates a random one,
// which invalidates every token on restart; set JWT_SECRET in production.
func NewTokens(secret string) *Tokens {
	if secret == "" {
		b := make([]byte, 32)
		rand.Read(b)
		secret = base64.StdEncoding.EncodeToString(b)
	}
	return &Tokens{
		secret:      []byte(secret),
		ttl:         24 * time.Hour,
		rememberTTL: 30 * 24 * time.Hour,
		now:         time.Now,
	}
}

// Generate creates a new JWT token for a user
func (t *Tokens) Generate(userID, username string, rememberMe bool) (string, error) {
	expiration := t.ttl
	if rememberMe {
		expiration = t.rememberTTL
	}

	now := t.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate validates a JWT token and returns the claims
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Refresh generates a new long-lived token from an existing valid token
func (t *Tokens) Refresh(tokenString string) (string, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return t.Generate(claims.UserID, claims.Username, true)
}
