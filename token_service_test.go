package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/messfeedback/go-auth"
)

func newTestTokenService(clock *fakeClock) *auth.TokenService {
	return auth.NewTokenService(
		[]byte(testSigningKey),
		24,
		"test-issuer",
		[]string{"test:audience"},
		auth.WithTokenClock(clock.Now),
	)
}

func TestNewTokenService(t *testing.T) {
	t.Run("defaults the expiration", func(t *testing.T) {
		service := auth.NewTokenService([]byte(testSigningKey), 0, "", nil)
		assert.Equal(t, 24*time.Hour, service.TTL())
	})

	t.Run("from config", func(t *testing.T) {
		service := auth.NewTokenServiceFromConfig(newMockConfig())
		assert.Equal(t, 24*time.Hour, service.TTL())
	})
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	clock := newFakeClock()
	service := newTestTokenService(clock)
	view := auth.AccountView{ID: "3f0c8f0e-2d7b-4c44-9a57-5b0e0b8e2f11", Identifier: "s1024", Role: auth.RoleStudent}

	token, expiresAt, err := service.Generate(view)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))
	assert.True(t, expiresAt.Equal(clock.Now().Add(24*time.Hour)))

	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, view.ID, claims.AccountID())
	assert.Equal(t, view.ID, claims.Subject())
	assert.Equal(t, auth.RoleStudent, claims.Role())
	assert.True(t, claims.IssuedAt().Equal(clock.Now()))
	assert.True(t, claims.Expires().Equal(expiresAt))

	other, _, err := service.Generate(view)
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "token id makes every token unique")
}

func TestTokenService_ValidateRejects(t *testing.T) {
	clock := newFakeClock()
	service := newTestTokenService(clock)
	view := auth.AccountView{ID: "acc-1", Identifier: "warden", Role: auth.RoleAdmin}

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims *auth.JWTClaims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}

	baseClaims := func() *auth.JWTClaims {
		return &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   view.ID,
				Audience:  jwt.ClaimStrings{"test:audience"},
				IssuedAt:  jwt.NewNumericDate(clock.Now()),
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
			UID:      view.ID,
			UserRole: view.Role,
		}
	}

	valid, _, err := service.Generate(view)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		expired bool
	}{
		{
			name:  "flipped signature",
			token: func(t *testing.T) string { return flipSignature(valid) },
		},
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-jwt" },
		},
		{
			name:  "empty",
			token: func(t *testing.T) string { return "" },
		},
		{
			name: "wrong key",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("some-other-key-some-other-key-xx"), baseClaims())
			},
		},
		{
			name: "alg none",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, baseClaims())
			},
		},
		{
			name: "other hmac algorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, []byte(testSigningKey), baseClaims())
			},
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				c := baseClaims()
				c.ExpiresAt = nil
				return sign(t, jwt.SigningMethodHS256, []byte(testSigningKey), c)
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				c := baseClaims()
				c.Issuer = "someone-else"
				return sign(t, jwt.SigningMethodHS256, []byte(testSigningKey), c)
			},
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				c := baseClaims()
				c.Audience = jwt.ClaimStrings{"kiosk"}
				return sign(t, jwt.SigningMethodHS256, []byte(testSigningKey), c)
			},
		},
		{
			name: "no account id",
			token: func(t *testing.T) string {
				c := baseClaims()
				c.RegisteredClaims.Subject = ""
				c.UID = ""
				return sign(t, jwt.SigningMethodHS256, []byte(testSigningKey), c)
			},
		},
		{
			name: "one second past expiry",
			token: func(t *testing.T) string {
				c := baseClaims()
				c.ExpiresAt = jwt.NewNumericDate(clock.Now().Add(-time.Second))
				return sign(t, jwt.SigningMethodHS256, []byte(testSigningKey), c)
			},
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token(t))
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, tt.expired, auth.IsTokenExpiredError(err))
			if !tt.expired {
				assert.True(t, auth.IsMalformedError(err))
			}
		})
	}
}

func TestTokenService_SignClaimsNil(t *testing.T) {
	service := newTestTokenService(newFakeClock())
	_, err := service.SignClaims(nil)
	assert.Error(t, err)
}
