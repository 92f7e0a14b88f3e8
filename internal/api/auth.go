package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
)

const (
	tokenCookieKey = "token"
	addressClaim   = "address"
)

type contextKey string

const addressKey contextKey = "address"

func WithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, addressKey, address)
}

// Address returns the authenticated user address bound to the request
// context.
func Address(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(addressKey).(string)
	return address, ok
}

// tokenFromRequest accepts the session cookie or a bearer token.
func tokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		return cookie.Value, nil
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token, nil
	}

	return "", fmt.Errorf("no credentials in request")
}

func (a *App) extractAddressFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	address, ok := claims[addressClaim].(string)
	if !ok || address == "" {
		return "", fmt.Errorf("missing address claim")
	}

	return address, nil
}
