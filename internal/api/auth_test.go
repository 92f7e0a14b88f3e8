package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func TestAddress(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		address  string
		expected bool
	}{
		{
			name:     "no address",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "address set",
			ctx:      WithAddress(context.Background(), "0xabc"),
			address:  "0xabc",
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			address, ok := Address(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected Address to return %v", tc.expected)
			assert.Equal(t, tc.address, address, "expected Address to return %q", tc.address)
		})
	}
}

func signToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	assert.NoError(t, err)
	return token
}

func Test_tokenFromRequest(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})

		token, err := tokenFromRequest(r)
		assert.NoError(t, err)
		assert.Equal(t, "cookie-token", token)
	})

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("Authorization", "Bearer header-token")

		token, err := tokenFromRequest(r)
		assert.NoError(t, err)
		assert.Equal(t, "header-token", token)
	})

	t.Run("no credentials", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)

		_, err := tokenFromRequest(r)
		assert.Error(t, err)
	})
}

func Test_extractAddressFromToken(t *testing.T) {
	key := []byte("test-signing-key")
	app := &App{signingKey: key}

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{addressClaim: "0xabc"})

		address, err := app.extractAddressFromToken(token)
		assert.NoError(t, err)
		assert.Equal(t, "0xabc", address)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := signToken(t, []byte("other-key"), jwt.MapClaims{addressClaim: "0xabc"})

		_, err := app.extractAddressFromToken(token)
		assert.Error(t, err)
	})

	t.Run("missing address claim", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{"sub": "nobody"})

		_, err := app.extractAddressFromToken(token)
		assert.Error(t, err)
	})

	t.Run("not a token", func(t *testing.T) {
		_, err := app.extractAddressFromToken("garbage")
		assert.Error(t, err)
	})
}
