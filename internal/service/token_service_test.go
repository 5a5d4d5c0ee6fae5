package service

import (
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "wallet-ledger")

	for _, caller := range []domain.Caller{
		{ID: "retailer-1", Role: domain.RoleRetailer},
		{ID: "admin-1", Role: domain.RoleAdmin},
	} {
		t.Run(string(caller.Role), func(t *testing.T) {
			tokenStr, expiresAt, err := svc.Generate(caller)
			require.NoError(t, err)
			assert.NotEmpty(t, tokenStr)
			assert.True(t, expiresAt.After(time.Now()))

			claims, err := svc.Validate(tokenStr)
			require.NoError(t, err)
			assert.Equal(t, caller.ID, claims.Subject)
			assert.Equal(t, caller.Role, claims.Role)
		})
	}
}

func TestJWTTokenService_GenerateRejectsBadCaller(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")

	_, _, err := svc.Generate(domain.Caller{ID: "", Role: domain.RoleRetailer})
	assert.Error(t, err)

	_, _, err = svc.Generate(domain.Caller{ID: "r-1", Role: "superuser"})
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "wallet-ledger")

	tokenStr, _, err := svc.Generate(domain.Caller{ID: "r-1", Role: domain.RoleRetailer})
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", 24*time.Hour, "wallet-ledger")
	svc2 := NewJWTTokenService("secret-2", 24*time.Hour, "wallet-ledger")

	tokenStr, _, err := svc1.Generate(domain.Caller{ID: "r-1", Role: domain.RoleRetailer})
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	other := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")

	tokenStr, _, err := other.Generate(domain.Caller{ID: "r-1", Role: domain.RoleRetailer})
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsUnknownRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "r-1",
		"role": "root",
		"iss":  "wallet-ledger",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "admin-1",
		"role": "admin",
		"iss":  "wallet-ledger",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "wallet-ledger")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
