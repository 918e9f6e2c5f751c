// Package auth verifies the bearer tokens issued by the identity provider and
// turns them into principals. Credentials and sessions live with the provider.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ideaboard/internal/models"
)

// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the identity fields of a principal.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokens builds a token codec. The secret must not be empty.
func NewTokens(secret, issuer string) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is not set")
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue mints a token for p valid for ttl.
func (t *Tokens) Issue(p models.Principal, ttl time.Duration) (string, error) {
	if strings.TrimSpace(p.UID) == "" {
		return "", fmt.Errorf("principal uid is required")
	}
	now := t.now()
	claims := Claims{
		Email:   p.Email,
		Name:    p.DisplayName,
		Picture: p.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, issuer and expiry and returns the principal.
func (t *Tokens) Verify(tokenString string) (models.Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.Principal{}, ErrInvalidToken
	}

	return models.Principal{
		UID:         claims.Subject,
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("authorization header format must be Bearer {token}")
	}
	return strings.TrimSpace(parts[1]), nil
}
