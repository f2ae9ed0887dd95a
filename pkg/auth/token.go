package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoToken      = errors.New("provide an auth token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims accepts both the registered subject and a user_id claim, since the
// identity service issues the latter.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// ExtractToken reads a bearer credential from the Authorization header and
// falls back to the "token" query parameter (useful for WebSockets).
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

// Parse validates tokenString and returns the user it was issued to.
func (p *TokenParser) Parse(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrNoToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

// Issue signs a short token for userID. Used by tests and local tooling; the
// production identity service issues its own tokens with the same secret.
func (p *TokenParser) Issue(userID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	})
	return token.SignedString(p.secret)
}
